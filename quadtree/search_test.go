package quadtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func searchPayloads(t *testing.T, tree *Tree[string], query Box) []string {
	var payloads []string
	completed, err := tree.Search(query, func(payload string) bool {
		payloads = append(payloads, payload)
		return true
	})
	require.NoError(t, err)
	require.True(t, completed)
	return payloads
}

func searchShapePayloads(t *testing.T, tree *Tree[string], query Box) []string {
	var payloads []string
	completed, err := tree.SearchShape(query, func(it *Item[string]) bool {
		require.True(t, it.Overlaps(query))
		payloads = append(payloads, it.Payload)
		return true
	})
	require.NoError(t, err)
	require.True(t, completed)
	return payloads
}

func TestTreeSearch(t *testing.T) {
	tree := newTestTree(t, 16, 2)
	insert(t, tree, NewBox(-16, -16, 16, 16), "p1")
	p2 := insert(t, tree, NewBox(0, 0, 4, 4), "p2")

	t.Run("item stored at root is visited by every search", func(t *testing.T) {
		require.ElementsMatch(t, []string{"p1", "p2"}, searchPayloads(t, tree, NewBox(0, 0, 4, 4)))
		require.Equal(t, []string{"p1"}, searchPayloads(t, tree, NewBox(-16, -16, -12, -12)))
	})

	t.Run("touching boxes overlap", func(t *testing.T) {
		require.ElementsMatch(t, []string{"p1", "p2"}, searchPayloads(t, tree, NewBox(4, 4, 10, 10)))
		require.Equal(t, []string{"p1"}, searchPayloads(t, tree, NewBox(5, 5, 10, 10)))
	})

	t.Run("each match is reported once", func(t *testing.T) {
		require.ElementsMatch(t, []string{"p1", "p2"}, searchPayloads(t, tree, tree.Bounds()))
		require.ElementsMatch(t, []string{"p1", "p2"}, searchPayloads(t, tree, NewBox(-100, -100, 100, 100)))
	})

	t.Run("removed item is not reported", func(t *testing.T) {
		removed, err := tree.Remove(NewBox(-16, -16, 16, 16), "p1")
		require.NoError(t, err)
		require.True(t, removed)
		require.Equal(t, []string{"p2"}, searchPayloads(t, tree, p2.Box))
		require.Empty(t, searchPayloads(t, tree, NewBox(-16, -16, -12, -12)))
	})

	t.Run("invalid query", func(t *testing.T) {
		completed, err := tree.Search(NewBox(1, 1, 0, 0), func(string) bool { return true })
		require.False(t, completed)
		require.True(t, errors.IsType(err, ErrTypeInvalidBox))
	})
}

func TestTreeSearchDisjoint(t *testing.T) {
	tree := newTestTree(t, 16, 3)
	a := insert(t, tree, NewBox(-10, -10, -2, -3), "a")
	b := insert(t, tree, NewBox(-1, -10, 6, -3), "b")

	require.Equal(t, []string{"a"}, searchPayloads(t, tree, a.Box))
	require.Equal(t, []string{"b"}, searchPayloads(t, tree, b.Box))
	require.Equal(t, []string{"a"}, searchShapePayloads(t, tree, a.Box))
	require.Equal(t, []string{"b"}, searchShapePayloads(t, tree, b.Box))
}

func TestTreeSearchShape(t *testing.T) {
	t.Run("shape search skips coarser ancestors", func(t *testing.T) {
		tree := newTestTree(t, 16, 2)
		insert(t, tree, NewBox(-16, -16, 16, 16), "p1")
		insert(t, tree, NewBox(0, 0, 4, 4), "p2")

		require.Equal(t, []string{"p2"}, searchShapePayloads(t, tree, NewBox(0, 0, 4, 4)))
		require.ElementsMatch(t, []string{"p1", "p2"}, searchPayloads(t, tree, NewBox(0, 0, 4, 4)))
	})

	t.Run("shape search finds finer items below the start node", func(t *testing.T) {
		tree := newTestTree(t, 16, 3)
		insert(t, tree, NewBox(0, 0, 7, 7), "tile")
		insert(t, tree, NewBox(0, 0, 1, 1), "a")
		insert(t, tree, NewBox(6, 6, 7, 7), "b")
		insert(t, tree, NewBox(8, 0, 9, 1), "outside")

		require.ElementsMatch(t, []string{"tile", "a", "b"}, searchShapePayloads(t, tree, NewBox(0, 0, 7, 7)))
	})

	t.Run("missing start node falls back to the deepest existing node", func(t *testing.T) {
		tree := newTestTree(t, 16, 2)
		insert(t, tree, NewBox(-1, -1, 1, 1), "root")

		require.Equal(t, []string{"root"}, searchShapePayloads(t, tree, NewBox(0, 0, 1, 1)))
		require.Equal(t, 1, tree.NodeCount())
	})

	t.Run("tile shaped items", func(t *testing.T) {
		tree := newTestTree(t, 16, 2)
		for x := -16; x < 16; x += 8 {
			for y := -16; y < 16; y += 8 {
				box := NewBox(x, y, x+7, y+7)
				insert(t, tree, box, box.String())
			}
		}
		require.Equal(t, 16, tree.Size())

		box := NewBox(-8, 8, -1, 15)
		require.Equal(t, []string{box.String()}, searchShapePayloads(t, tree, box))
	})
}

func TestTreeSearchEarlyTermination(t *testing.T) {
	tree := newTestTree(t, 16, 2)
	box := NewBox(0, 0, 4, 4)
	insert(t, tree, box, "a")
	insert(t, tree, box, "b")
	insert(t, tree, box, "c")

	t.Run("shape search", func(t *testing.T) {
		var calls int
		completed, err := tree.SearchShape(box, func(*Item[string]) bool {
			calls++
			return false
		})
		require.NoError(t, err)
		require.False(t, completed)
		require.Equal(t, 1, calls)
	})

	t.Run("search", func(t *testing.T) {
		var calls int
		completed, err := tree.Search(box, func(string) bool {
			calls++
			return false
		})
		require.NoError(t, err)
		require.False(t, completed)
		require.Equal(t, 1, calls)
	})

	t.Run("stop after second match", func(t *testing.T) {
		var calls int
		completed, err := tree.Search(box, func(string) bool {
			calls++
			return calls < 2
		})
		require.NoError(t, err)
		require.False(t, completed)
		require.Equal(t, 2, calls)
	})
}

func TestTreeCollect(t *testing.T) {
	tree := newTestTree(t, 16, 2)
	insert(t, tree, NewBox(8, 8, 9, 9), "c")
	insert(t, tree, NewBox(-16, -16, -15, -15), "a")
	insert(t, tree, NewBox(0, -16, 1, -15), "b")

	t.Run("nodes are visited depth first in quadrant order", func(t *testing.T) {
		var visited []string
		completed, err := tree.Collect(func(n Node[string]) bool {
			visited = append(visited, n.String())
			return true
		})
		require.NoError(t, err)
		require.True(t, completed)
		require.Equal(t, []string{
			"-16:-16:32",
			"-16:-16:16",
			"-16:-16:8",
			"0:-16:16",
			"0:-16:8",
			"0:0:16",
			"8:8:8",
		}, visited)
		require.Equal(t, tree.NodeCount(), len(visited))
	})

	t.Run("parent links", func(t *testing.T) {
		n := nodeOf(t, tree, "c")
		parent, ok := n.Parent()
		require.True(t, ok)
		require.Equal(t, "0:0:16", parent.String())

		root, ok := parent.Parent()
		require.True(t, ok)
		require.True(t, root.IsRoot())

		_, ok = root.Parent()
		require.False(t, ok)

		child, ok := parent.Child(HighXHighY)
		require.True(t, ok)
		require.Equal(t, n, child)
	})

	t.Run("stop", func(t *testing.T) {
		var calls int
		completed, err := tree.Collect(func(n Node[string]) bool {
			calls++
			return calls < 3
		})
		require.NoError(t, err)
		require.False(t, completed)
		require.Equal(t, 3, calls)
	})
}

func TestTreeSearchMatchesBruteForce(t *testing.T) {
	const (
		extents  = 256
		maxDepth = 6
	)

	rnd := rand.New(rand.NewSource(42))
	randomBox := func() Box {
		size := rnd.Intn(16)
		if rnd.Intn(10) == 0 {
			size = rnd.Intn(200)
		}
		x := rnd.Intn(2*extents) - extents
		y := rnd.Intn(2*extents) - extents
		return NewBox(x, y, x+size, y+rnd.Intn(size+1))
	}

	tree, err := New[int](extents, maxDepth)
	require.NoError(t, err)

	items := make([]*Item[int], 500)
	for i := range items {
		items[i] = NewItem(randomBox(), i)
		require.NoError(t, tree.Insert(items[i]))
	}
	require.Equal(t, len(items), tree.Size())

	check := func(t *testing.T) {
		for i := 0; i < 200; i++ {
			query := randomBox()

			var want []int
			for _, it := range items {
				if it.Linked() && it.Overlaps(query) {
					want = append(want, it.Payload)
				}
			}

			var got []int
			completed, err := tree.Search(query, func(payload int) bool {
				got = append(got, payload)
				return true
			})
			require.NoError(t, err)
			require.True(t, completed)

			sort.Ints(want)
			sort.Ints(got)
			require.Equal(t, want, got, "query %s", query)

			var shape []int
			_, err = tree.SearchShape(query, func(it *Item[int]) bool {
				shape = append(shape, it.Payload)
				return true
			})
			require.NoError(t, err)
			require.Subset(t, got, shape)
		}
	}

	t.Run("after insertions", check)

	for i := 0; i < len(items); i += 2 {
		removed, err := tree.Remove(items[i].Box, i)
		require.NoError(t, err)
		require.True(t, removed)
	}
	require.Equal(t, len(items)/2, tree.Size())

	t.Run("after removals", check)

	for i := 1; i < len(items); i += 2 {
		removed, err := tree.Remove(items[i].Box, i)
		require.NoError(t, err)
		require.True(t, removed)
	}
	require.Equal(t, 0, tree.Size())
	require.Equal(t, 1, tree.NodeCount())
	require.Equal(t, len(tree.nodes)-1, tree.PooledNodes())
}

func TestStack(t *testing.T) {
	t.Run("push and pop", func(t *testing.T) {
		var s stack
		require.True(t, s.empty())

		require.NoError(t, s.push(1))
		require.NoError(t, s.push(2))
		require.Equal(t, 2, s.len())
		require.Equal(t, int32(2), s.pop())
		require.Equal(t, int32(1), s.pop())
		require.True(t, s.empty())
		require.Equal(t, [StackCapacity]int32{}, s.nodes)
	})

	t.Run("overflow", func(t *testing.T) {
		var s stack
		for i := 0; i < StackCapacity; i++ {
			require.NoError(t, s.push(int32(i+1)))
		}

		err := s.push(42)
		require.True(t, errors.IsType(err, ErrTypeStackOverflow))
		require.Equal(t, StackCapacity, s.len())
	})

	t.Run("reset clears every slot", func(t *testing.T) {
		var s stack
		require.NoError(t, s.push(7))
		require.NoError(t, s.push(8))

		s.reset()
		require.True(t, s.empty())
		require.Equal(t, [StackCapacity]int32{}, s.nodes)
	})

	t.Run("released stacks are reset", func(t *testing.T) {
		s := acquireStack()
		require.NoError(t, s.push(3))
		releaseStack(s)
		require.True(t, s.empty())
		require.Equal(t, [StackCapacity]int32{}, s.nodes)
	})
}

func TestTreeDeepTraversalFitsStack(t *testing.T) {
	tree, err := New[int](1<<20, MaxDepthLimit-9)
	require.NoError(t, err)

	// One item in every quadrant of every level along two diagonals.
	var n int
	for size := 1 << 20; size > 1; size >>= 1 {
		for _, x := range []int{-size, size - 2} {
			require.NoError(t, tree.Insert(NewItem(NewBox(x, x, x+1, x+1), n)))
			n++
		}
	}

	var found int
	completed, err := tree.Search(tree.Bounds(), func(int) bool {
		found++
		return true
	})
	require.NoError(t, err)
	require.True(t, completed)
	require.Equal(t, n, found)
}

func BenchmarkTreeInsert(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	tree, _ := New[int](1<<16, 12)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x := rnd.Intn(1<<17) - 1<<16
		y := rnd.Intn(1<<17) - 1<<16
		tree.Insert(NewItem(NewBox(x, y, x+16, y+16), i))
	}
}

func BenchmarkTreeSearch(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	tree, _ := New[int](1<<16, 12)
	for i := 0; i < 100000; i++ {
		x := rnd.Intn(1<<17) - 1<<16
		y := rnd.Intn(1<<17) - 1<<16
		tree.Insert(NewItem(NewBox(x, y, x+16, y+16), i))
	}

	query := NewBox(-1024, -1024, 1024, 1024)
	var found int

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.Search(query, func(int) bool {
			found++
			return true
		})
	}
}
