// Package tile maps XYZ tile coordinates to boxes of a quadtree universe.
//
// At zoom z the universe [-extents, extents) is split into 2^z x 2^z tiles.
// A tile box is exactly the square of the quadtree node at depth z, so tiles
// of zoom z are stored at depth z when the tree is at least that deep.
package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tileindex/quadtree"
)

const (
	// ErrTypeInvalidTile is the type of errors returned for tile coordinates
	// outside their zoom level.
	ErrTypeInvalidTile = "invalid_tile"

	// MaxZoom is the deepest zoom level an ID can have.
	MaxZoom = 30
)

// ID represents tile coordinates in the XYZ scheme.
type ID struct {
	X uint32 `json:"x" yaml:"x"`
	Y uint32 `json:"y" yaml:"y"`
	Z uint32 `json:"z" yaml:"z"`
}

// Valid reports whether the coordinates exist at the tile zoom level.
func (t ID) Valid() bool {
	return t.Z <= MaxZoom && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Parent returns the tile one zoom level up containing t.
func (t ID) Parent() (ID, bool) {
	if t.Z == 0 {
		return ID{}, false
	}
	return ID{X: t.X >> 1, Y: t.Y >> 1, Z: t.Z - 1}, true
}

// Box returns the inclusive box covered by the tile in a universe of the
// given extents.
func (t ID) Box(extents int) (quadtree.Box, error) {
	if !t.Valid() {
		return quadtree.Box{}, errors.New("invalid tile").
			WithType(ErrTypeInvalidTile).
			WithTag("tile", t.String())
	}

	size := (2 * extents) >> t.Z
	if size == 0 {
		return quadtree.Box{}, errors.New("zoom level finer than the universe").
			WithType(ErrTypeInvalidTile).
			WithTag("tile", t.String()).
			WithTag("extents", extents)
	}

	x1 := -extents + int(t.X)*size
	y1 := -extents + int(t.Y)*size
	return quadtree.NewBox(x1, y1, x1+size-1, y1+size-1), nil
}

// Covering calls fn with every tile of zoom z overlapping b, row by row,
// until fn returns false. Parts of b outside the universe are ignored.
func Covering(b quadtree.Box, z uint32, extents int, fn func(ID) bool) error {
	if !b.Valid() {
		return errors.New("invalid box").
			WithType(quadtree.ErrTypeInvalidBox).
			WithTag("box", b.String())
	}
	if z > MaxZoom || (2*extents)>>z == 0 {
		return errors.New("invalid zoom level").
			WithType(ErrTypeInvalidTile).
			WithTag("zoom", z).
			WithTag("extents", extents)
	}

	size := (2 * extents) >> z
	last := (1 << z) - 1

	index := func(v int) int {
		i := (v + extents) / size
		if v+extents < 0 {
			return -1
		}
		return min(i, last+1)
	}

	x1, x2 := max(index(b.X1), 0), min(index(b.X2), last)
	y1, y2 := max(index(b.Y1), 0), min(index(b.Y2), last)

	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			if !fn(ID{X: uint32(x), Y: uint32(y), Z: z}) {
				return nil
			}
		}
	}
	return nil
}

// Parse parses a "z/x/y" string.
func Parse(s string) (ID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return ID{}, errors.New("tile must be formatted as z/x/y").
			WithType(ErrTypeInvalidTile).
			WithTag("tile", s)
	}

	var coords [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return ID{}, errors.New("parsing tile coordinate failed").
				WithType(ErrTypeInvalidTile).
				WithTag("tile", s).
				Wrap(err)
		}
		coords[i] = uint32(v)
	}

	id := ID{Z: coords[0], X: coords[1], Y: coords[2]}
	if !id.Valid() {
		return ID{}, errors.New("invalid tile").
			WithType(ErrTypeInvalidTile).
			WithTag("tile", s)
	}
	return id, nil
}
