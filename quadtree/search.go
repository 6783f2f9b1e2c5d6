package quadtree

// Search calls fn with the payload of every item whose box overlaps query,
// until fn returns false. The whole tree is searched. It reports whether the
// search completed.
func (t *Tree[T]) Search(query Box, fn func(T) bool) (bool, error) {
	if !query.Valid() {
		return false, invalidBoxError(query)
	}

	return t.walk(rootNode, query, false, func(idx int32) bool {
		for it := t.nodes[idx].items; it != nil; it = it.next {
			if it.Overlaps(query) && !fn(it.Payload) {
				return false
			}
		}
		return true
	})
}

// SearchShape calls fn with every item overlapping query that is stored in
// the subtree of the node an item shaped like query would be stored at,
// until fn returns false. It reports whether the search completed.
//
// It is cheaper than Search but skips coarser items stored above the start
// node. Use it when queries have the granularity the items were inserted
// with, such as tile boxes of a single zoom level.
func (t *Tree[T]) SearchShape(query Box, fn func(*Item[T]) bool) (bool, error) {
	if !query.Valid() {
		return false, invalidBoxError(query)
	}

	start := t.lookup(query, false)
	return t.walk(start, query, false, func(idx int32) bool {
		for it := t.nodes[idx].items; it != nil; it = it.next {
			if it.Overlaps(query) && !fn(it) {
				return false
			}
		}
		return true
	})
}

// Collect calls fn for every node of the tree, in the order searches visit
// them, until fn returns false. It reports whether every node was visited.
func (t *Tree[T]) Collect(fn func(Node[T]) bool) (bool, error) {
	return t.walk(rootNode, Box{}, true, func(idx int32) bool {
		return fn(Node[T]{tree: t, idx: idx})
	})
}

// walk visits the subtree of start depth first, in quadrant order, skipping
// nodes whose square does not overlap query unless all is set.
//
// No recursion is involved: when a node is popped, the next sibling after it
// and its first child are pushed. Since each pushed node schedules its own
// sibling and child when popped, every matching node is visited exactly once.
// Siblings of start are never scheduled.
//
// visit must not mutate the tree.
func (t *Tree[T]) walk(start int32, query Box, all bool, visit func(int32) bool) (bool, error) {
	s := acquireStack()
	defer releaseStack(s)

	if err := s.push(start); err != nil {
		return false, err
	}

	for !s.empty() {
		idx := s.pop()
		if !visit(idx) {
			return false, nil
		}

		n := &t.nodes[idx]

		// Push next node on same level.
		if idx != start {
			p := &t.nodes[n.parent]
			for q := int(n.id) + 1; q < len(p.children); q++ {
				if sibling := p.children[q]; t.matches(sibling, query, all) {
					if err := s.push(sibling); err != nil {
						return false, err
					}
					break
				}
			}
		}

		// Push next level child.
		for _, child := range n.children {
			if t.matches(child, query, all) {
				if err := s.push(child); err != nil {
					return false, err
				}
				break
			}
		}
	}

	return true, nil
}

func (t *Tree[T]) matches(idx int32, query Box, all bool) bool {
	if idx == noNode {
		return false
	}
	return all || t.nodes[idx].region().Overlaps(query)
}
