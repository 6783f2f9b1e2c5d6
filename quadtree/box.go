package quadtree

import "fmt"

// Box is an axis-aligned box with inclusive bounds.
type Box struct {
	X1 int `json:"x1" yaml:"x1"`
	Y1 int `json:"y1" yaml:"y1"`
	X2 int `json:"x2" yaml:"x2"`
	Y2 int `json:"y2" yaml:"y2"`
}

// NewBox returns a box spanning the given bounds.
func NewBox(x1, y1, x2, y2 int) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Valid reports whether the minimum corner is not greater than the maximum
// corner on both axes.
func (b Box) Valid() bool {
	return b.X1 <= b.X2 && b.Y1 <= b.Y2
}

// Overlaps reports whether both boxes intersect. Touching edges overlap.
func (b Box) Overlaps(o Box) bool {
	return !(b.X1 > o.X2 || o.X1 > b.X2 || b.Y1 > o.Y2 || o.Y1 > b.Y2)
}

// Contains reports whether o lies entirely inside b.
func (b Box) Contains(o Box) bool {
	return o.X1 >= b.X1 && o.X2 <= b.X2 && o.Y1 >= b.Y1 && o.Y2 <= b.Y2
}

func (b Box) String() string {
	return fmt.Sprintf("%d,%d/%d,%d", b.X1, b.Y1, b.X2, b.Y2)
}

func isPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}

func log2(x int) int {
	n := 0
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}
