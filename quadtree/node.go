package quadtree

import "fmt"

const (
	// Index of the root node in the arena. It is never the child of another
	// node, so it doubles as the "no child" marker.
	rootNode int32 = 0
	noNode   int32 = 0
)

// Quadrant identifiers, relative to the parent node.
const (
	LowXLowY = iota
	LowXHighY
	HighXLowY
	HighXHighY
)

type node[T comparable] struct {
	// Square [x1, x2) x [y1, y2).
	x1, y1, x2, y2 int

	parent   int32
	children [4]int32
	id       uint8
	depth    uint8

	// Number of items stored at or below this node.
	refs int

	// Set on nodes reached by GetNode with create. Pinned nodes are kept
	// when their refs drop to zero, and so are their ancestors.
	pinned bool

	items *Item[T]
	count int
}

func (n *node[T]) size() int {
	return n.x2 - n.x1
}

// region returns the node square as an inclusive box.
func (n *node[T]) region() Box {
	return Box{X1: n.x1, Y1: n.y1, X2: n.x2 - 1, Y2: n.y2 - 1}
}

// quadrant returns the child quadrant fully containing b, or -1 when b
// straddles a center line or leaves the node square.
func (n *node[T]) quadrant(b Box) int {
	hsize := n.size() >> 1
	cx := n.x1 + hsize
	cy := n.y1 + hsize

	var q int
	switch {
	case b.X1 >= n.x1 && b.X2 < cx:
	case b.X1 >= cx && b.X2 < n.x2:
		q = HighXLowY
	default:
		return -1
	}

	switch {
	case b.Y1 >= n.y1 && b.Y2 < cy:
	case b.Y1 >= cy && b.Y2 < n.y2:
		q += LowXHighY
	default:
		return -1
	}
	return q
}

// newNode takes a node from the pool, or grows the arena, and attaches it as
// quadrant q of parent. Pointers into the arena are invalid afterwards.
func (t *Tree[T]) newNode(parent int32, q int) int32 {
	var idx int32
	if n := len(t.free); n != 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.nodes = append(t.nodes, node[T]{})
		idx = int32(len(t.nodes) - 1)
	}

	p := &t.nodes[parent]
	hsize := p.size() >> 1

	n := &t.nodes[idx]
	n.parent = parent
	n.id = uint8(q)
	n.depth = p.depth + 1
	n.x1 = p.x1
	n.y1 = p.y1
	if q&HighXLowY != 0 {
		n.x1 += hsize
	}
	if q&LowXHighY != 0 {
		n.y1 += hsize
	}
	n.x2 = n.x1 + hsize
	n.y2 = n.y1 + hsize

	p.children[q] = idx
	return idx
}

// retire returns a detached node and its subtree to the pool.
func (t *Tree[T]) retire(idx int32) {
	for _, c := range t.nodes[idx].children {
		if c != noNode {
			t.retire(c)
		}
	}
	t.nodes[idx] = node[T]{}
	t.free = append(t.free, idx)
}

// Node is a read-only view of a tree node. It is only valid until the next
// mutation of the tree.
type Node[T comparable] struct {
	tree *Tree[T]
	idx  int32
}

func (n Node[T]) node() *node[T] {
	return &n.tree.nodes[n.idx]
}

// Bounds returns the node square as an inclusive box.
func (n Node[T]) Bounds() Box {
	return n.node().region()
}

// Size returns the side length of the node square.
func (n Node[T]) Size() int {
	return n.node().size()
}

// Quadrant returns which quadrant of its parent the node is. It is
// meaningless for the root.
func (n Node[T]) Quadrant() int {
	return int(n.node().id)
}

// Depth returns the number of levels between the root and the node.
func (n Node[T]) Depth() int {
	return int(n.node().depth)
}

// IsRoot reports whether the node is the root of its tree.
func (n Node[T]) IsRoot() bool {
	return n.idx == rootNode
}

// Parent returns the parent node. It returns false for the root.
func (n Node[T]) Parent() (Node[T], bool) {
	if n.IsRoot() {
		return Node[T]{}, false
	}
	return Node[T]{tree: n.tree, idx: n.node().parent}, true
}

// Child returns the child node in quadrant q, if it exists.
func (n Node[T]) Child(q int) (Node[T], bool) {
	if q < 0 || q >= 4 {
		return Node[T]{}, false
	}

	idx := n.node().children[q]
	if idx == noNode {
		return Node[T]{}, false
	}
	return Node[T]{tree: n.tree, idx: idx}, true
}

// Refs returns the number of items stored at or below the node.
func (n Node[T]) Refs() int {
	return n.node().refs
}

// ItemCount returns the number of items stored directly at the node.
func (n Node[T]) ItemCount() int {
	return n.node().count
}

// Items calls fn for each item stored directly at the node until fn returns
// false. It reports whether all the items were visited.
func (n Node[T]) Items(fn func(*Item[T]) bool) bool {
	for it := n.node().items; it != nil; it = it.next {
		if !fn(it) {
			return false
		}
	}
	return true
}

func (n Node[T]) String() string {
	nd := n.node()
	return fmt.Sprintf("%d:%d:%d", nd.x1, nd.y1, nd.size())
}
