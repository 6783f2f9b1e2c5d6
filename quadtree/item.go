package quadtree

// Item is a box stored in a tree along with a payload. Items sharing a node
// are chained through their next field, so linking an item into a tree does
// not allocate.
//
// The box of an item must not be modified while the item is linked.
type Item[T comparable] struct {
	Box
	Payload T

	next  *Item[T]
	tree  *Tree[T]
	epoch uint64
}

// NewItem returns an unlinked item.
func NewItem[T comparable](b Box, payload T) *Item[T] {
	return &Item[T]{
		Box:     b,
		Payload: payload,
	}
}

// Linked reports whether the item is currently stored in a tree. Items
// stored before a Clear are no longer linked.
func (it *Item[T]) Linked() bool {
	return it.tree != nil && it.tree.epoch == it.epoch
}

func (it *Item[T]) link(t *Tree[T], head *Item[T]) {
	it.next = head
	it.tree = t
	it.epoch = t.epoch
}

func (it *Item[T]) unlink() {
	it.next = nil
	it.tree = nil
	it.epoch = 0
}
