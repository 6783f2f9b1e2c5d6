package models

import (
	"sort"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RegionStore {
	s, err := NewRegionStore(16, 3)
	require.NoError(t, err)
	return s
}

func regionIDs(regions []*Region) []uint32 {
	ids := make([]uint32, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestNewRegionStore(t *testing.T) {
	_, err := NewRegionStore(15, 3)
	require.Error(t, err)
	require.True(t, errors.IsType(err, quadtree.ErrTypeInvalidConfiguration))
}

func TestRegionStoreAdd(t *testing.T) {
	t.Run("assigns identity", func(t *testing.T) {
		s := newTestStore(t)

		r, err := s.Add(Region{
			Source: "test",
			Box:    quadtree.NewBox(-4, -4, 4, 4),
			Tags:   map[string]string{"floor": "1"},
		})
		require.NoError(t, err)
		require.Equal(t, uint32(1), r.ID)
		require.NotEmpty(t, r.UUID)
		require.False(t, r.CreatedAt.IsZero())
		require.Equal(t, 1, s.Count())

		got, ok := s.Get(r.ID)
		require.True(t, ok)
		require.Same(t, r, got)
	})

	t.Run("invalid box", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.Add(Region{Box: quadtree.NewBox(4, 4, -4, -4)})
		require.Error(t, err)
		require.True(t, errors.IsType(err, quadtree.ErrTypeInvalidBox))
		require.Zero(t, s.Count())
	})

	t.Run("tile", func(t *testing.T) {
		s := newTestStore(t)

		r, err := s.AddTile(tile.ID{X: 1, Y: 0, Z: 1}, "tiles", nil)
		require.NoError(t, err)
		require.Equal(t, quadtree.NewBox(0, -16, 15, -1), r.Box)
		require.Equal(t, &tile.ID{X: 1, Y: 0, Z: 1}, r.Tile)
	})

	t.Run("invalid tile", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.AddTile(tile.ID{X: 2, Y: 0, Z: 1}, "tiles", nil)
		require.Error(t, err)
		require.True(t, errors.IsType(err, tile.ErrTypeInvalidTile))
	})
}

func TestRegionStoreRemove(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Add(Region{Box: quadtree.NewBox(-16, -16, -9, -9)})
	require.NoError(t, err)
	b, err := s.Add(Region{Box: quadtree.NewBox(8, 8, 15, 15)})
	require.NoError(t, err)

	removed, err := s.Remove(a.ID)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 1, s.Count())

	_, ok := s.Get(a.ID)
	require.False(t, ok)

	removed, err = s.Remove(a.ID)
	require.NoError(t, err)
	require.False(t, removed)

	regions, completed, err := s.Query(quadtree.NewBox(-16, -16, 15, 15), 0)
	require.NoError(t, err)
	require.True(t, completed)
	require.Equal(t, []uint32{b.ID}, regionIDs(regions))

	c, err := s.Add(Region{Box: quadtree.NewBox(0, 0, 1, 1)})
	require.NoError(t, err)
	require.Equal(t, a.ID, c.ID)
}

func TestRegionStoreQuery(t *testing.T) {
	s := newTestStore(t)

	whole, err := s.Add(Region{Box: quadtree.NewBox(-16, -16, 15, 15)})
	require.NoError(t, err)
	low, err := s.AddTile(tile.ID{X: 0, Y: 0, Z: 1}, "tiles", nil)
	require.NoError(t, err)
	cell, err := s.AddTile(tile.ID{X: 0, Y: 0, Z: 3}, "tiles", nil)
	require.NoError(t, err)
	high, err := s.AddTile(tile.ID{X: 3, Y: 3, Z: 2}, "tiles", nil)
	require.NoError(t, err)

	t.Run("tree", func(t *testing.T) {
		regions, completed, err := s.Query(quadtree.NewBox(-16, -16, -13, -13), 0)
		require.NoError(t, err)
		require.True(t, completed)
		require.Equal(t, []uint32{whole.ID, low.ID, cell.ID}, regionIDs(regions))
	})

	t.Run("shape", func(t *testing.T) {
		regions, completed, err := s.QueryShape(quadtree.NewBox(-16, -16, -1, -1), 0)
		require.NoError(t, err)
		require.True(t, completed)
		require.Equal(t, []uint32{low.ID, cell.ID}, regionIDs(regions))
	})

	t.Run("tile", func(t *testing.T) {
		regions, completed, err := s.QueryTile(tile.ID{X: 1, Y: 1, Z: 1}, false, 0)
		require.NoError(t, err)
		require.True(t, completed)
		require.Equal(t, []uint32{whole.ID, high.ID}, regionIDs(regions))

		regions, _, err = s.QueryTile(tile.ID{X: 1, Y: 1, Z: 1}, true, 0)
		require.NoError(t, err)
		require.Equal(t, []uint32{high.ID}, regionIDs(regions))
	})

	t.Run("limit", func(t *testing.T) {
		regions, completed, err := s.Query(quadtree.NewBox(-16, -16, 15, 15), 2)
		require.NoError(t, err)
		require.False(t, completed)
		require.Len(t, regions, 2)
	})

	t.Run("invalid box", func(t *testing.T) {
		_, _, err := s.Query(quadtree.NewBox(1, 1, 0, 0), 0)
		require.Error(t, err)
		require.True(t, errors.IsType(err, quadtree.ErrTypeInvalidBox))
	})
}

func TestRegionStoreStats(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add(Region{Box: quadtree.NewBox(-16, -16, 15, 15)})
	require.NoError(t, err)
	_, err = s.AddTile(tile.ID{X: 0, Y: 0, Z: 3}, "tiles", nil)
	require.NoError(t, err)
	_, err = s.AddTile(tile.ID{X: 1, Y: 0, Z: 3}, "tiles", nil)
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, 3, stats.Regions)
	require.Equal(t, 5, stats.Nodes)
	require.Equal(t, 16, stats.Extents)
	require.Equal(t, 3, stats.MaxDepth)
	require.Equal(t, []LevelStats{
		{Depth: 0, Nodes: 1, Regions: 1, MaxRegions: 1},
		{Depth: 1, Nodes: 1},
		{Depth: 2, Nodes: 1},
		{Depth: 3, Nodes: 2, Regions: 2, MaxRegions: 1},
	}, stats.Levels)
}

func TestRegionStoreClear(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 4; i++ {
		_, err := s.AddTile(tile.ID{X: uint32(i), Y: 0, Z: 2}, "tiles", nil)
		require.NoError(t, err)
	}

	s.Clear()
	require.Zero(t, s.Count())

	regions, _, err := s.Query(quadtree.NewBox(-16, -16, 15, 15), 0)
	require.NoError(t, err)
	require.Empty(t, regions)

	r, err := s.Add(Region{Box: quadtree.NewBox(0, 0, 0, 0)})
	require.NoError(t, err)
	require.Equal(t, uint32(1), r.ID)
}
