// Package quadtree implements a region quadtree indexing integer boxes in a
// fixed power-of-two square universe.
//
// Each box is stored at the coarsest node whose quadrant fully contains it, or
// at the deepest allowed node. Overlap searches walk the tree depth first
// without recursion, using parent links and a pooled fixed-size stack.
//
// A Tree is not safe for concurrent use. Callers serialize mutations and
// searches on the same tree.
package quadtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Verbose enables debug logs for every insertion and removal.
var Verbose = false

// Tree is a quadtree over the square [-extents, extents) on both axes.
type Tree[T comparable] struct {
	extents  int
	maxDepth int

	// Node arena. nodes[0] is the root.
	nodes []node[T]

	// Retired node indices, reused before growing the arena.
	free []int32

	// Incremented by Clear to unlink every item at once.
	epoch uint64
}

// New creates a tree covering [-extents, extents) on both axes and subdividing
// at most maxDepth times. Extents must be a power of two, and maxDepth must
// keep quadrant boundaries integral.
func New[T comparable](extents, maxDepth int) (*Tree[T], error) {
	if !isPowerOfTwo(extents) || extents > math.MaxInt>>1 {
		return nil, errors.New("extents must be a positive power of two").
			WithType(ErrTypeInvalidConfiguration).
			WithTag("extents", extents)
	}

	if maxDepth < 0 || maxDepth > MaxDepthLimit || maxDepth > log2(extents)+1 {
		return nil, errors.New("max depth out of range").
			WithType(ErrTypeInvalidConfiguration).
			WithTag("extents", extents).
			WithTag("max_depth", maxDepth).
			WithTag("max_depth_limit", min(MaxDepthLimit, log2(extents)+1))
	}

	t := &Tree[T]{
		extents:  extents,
		maxDepth: maxDepth,
		nodes:    make([]node[T], 1, 64),
		epoch:    1,
	}
	t.resetRoot()
	return t, nil
}

func (t *Tree[T]) resetRoot() {
	t.nodes[rootNode] = node[T]{
		x1: -t.extents,
		y1: -t.extents,
		x2: t.extents,
		y2: t.extents,
	}
}

// Extents returns the half side length of the universe.
func (t *Tree[T]) Extents() int {
	return t.extents
}

// MaxDepth returns the deepest level a node can have.
func (t *Tree[T]) MaxDepth() int {
	return t.maxDepth
}

// Bounds returns the universe as an inclusive box.
func (t *Tree[T]) Bounds() Box {
	return t.nodes[rootNode].region()
}

// Root returns the root node.
func (t *Tree[T]) Root() Node[T] {
	return Node[T]{tree: t, idx: rootNode}
}

// Size returns the number of items stored in the tree.
func (t *Tree[T]) Size() int {
	return t.nodes[rootNode].refs
}

// NodeCount returns the number of live nodes, root included.
func (t *Tree[T]) NodeCount() int {
	return len(t.nodes) - len(t.free)
}

// PooledNodes returns the number of retired nodes waiting for reuse.
func (t *Tree[T]) PooledNodes() int {
	return len(t.free)
}

// Insert stores the item at the coarsest node whose quadrant fully contains
// its box. Missing nodes on the way are created.
func (t *Tree[T]) Insert(it *Item[T]) error {
	if !it.Valid() {
		return invalidBoxError(it.Box)
	}

	if it.Linked() {
		return errors.New("item is already linked").
			WithType(ErrTypeAlreadyLinked).
			WithTag("box", it.String())
	}

	cur := rootNode
	for level := 0; ; level++ {
		t.nodes[cur].refs++

		q := -1
		if level < t.maxDepth {
			q = t.nodes[cur].quadrant(it.Box)
		}

		if q < 0 {
			n := &t.nodes[cur]
			it.link(t, n.items)
			n.items = it
			n.count++

			if Verbose {
				logs.WithTag("level", level).
					WithTag("count", n.count).
					WithTag("box", it.String()).
					Debug("quadtree insert")
			}
			return nil
		}

		child := t.nodes[cur].children[q]
		if child == noNode {
			child = t.newNode(cur, q)
		}
		cur = child
	}
}

// Remove unlinks the first item with the given payload from the node an item
// with the given shape would be stored at. It reports whether an item was
// removed. Nodes left without items in their subtree are returned to the
// node pool.
func (t *Tree[T]) Remove(shape Box, payload T) (bool, error) {
	if !shape.Valid() {
		return false, invalidBoxError(shape)
	}

	cur := rootNode
	for level := 0; ; level++ {
		q := -1
		if level < t.maxDepth {
			q = t.nodes[cur].quadrant(shape)
		}

		if q >= 0 {
			child := t.nodes[cur].children[q]
			if child == noNode {
				return false, nil
			}
			cur = child
			continue
		}

		n := &t.nodes[cur]
		var prev *Item[T]
		for it := n.items; it != nil; prev, it = it, it.next {
			if it.Payload != payload {
				continue
			}

			if prev == nil {
				n.items = it.next
			} else {
				prev.next = it.next
			}
			it.unlink()
			n.count--

			if Verbose {
				logs.WithTag("level", level).
					WithTag("count", n.count).
					WithTag("box", shape.String()).
					Debug("quadtree remove")
			}

			t.unref(cur)
			return true, nil
		}
		return false, nil
	}
}

// unref decrements refs from idx up to the root, retiring every non-root node
// that no longer holds any item and was not pinned by GetNode.
func (t *Tree[T]) unref(idx int32) {
	for {
		n := &t.nodes[idx]
		n.refs--
		if idx == rootNode {
			return
		}

		parent := n.parent
		if n.refs == 0 && !n.pinned {
			t.nodes[parent].children[n.id] = noNode
			t.retire(idx)
		}
		idx = parent
	}
}

// GetNode returns the node holding items with the given shape. With create,
// missing nodes are built and every node on the path is kept until Clear,
// even when the items below it are removed. Without it, the deepest existing
// node on the path is returned.
func (t *Tree[T]) GetNode(shape Box, create bool) (Node[T], error) {
	if !shape.Valid() {
		return Node[T]{}, invalidBoxError(shape)
	}
	return Node[T]{tree: t, idx: t.lookup(shape, create)}, nil
}

func (t *Tree[T]) lookup(shape Box, create bool) int32 {
	cur := rootNode
	for level := 0; level < t.maxDepth; level++ {
		q := t.nodes[cur].quadrant(shape)
		if q < 0 {
			break
		}

		child := t.nodes[cur].children[q]
		if child == noNode {
			if !create {
				break
			}
			child = t.newNode(cur, q)
		}
		cur = child

		if create {
			t.nodes[cur].pinned = true
		}
	}
	return cur
}

// Clear removes every node and item. Items stored before are unlinked and
// can be inserted again.
func (t *Tree[T]) Clear() {
	clear(t.nodes[1:])
	t.nodes = t.nodes[:1]
	t.free = t.free[:0]
	t.epoch++
	t.resetRoot()
}
