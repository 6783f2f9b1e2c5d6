package models

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
	"github.com/google/uuid"
)

// RegionStore indexes regions in a quadtree and serializes access to it.
// Queries run concurrently with each other, mutations run alone.
type RegionStore struct {
	mutex   sync.RWMutex
	tree    *quadtree.Tree[*Region]
	items   map[uint32]*quadtree.Item[*Region]
	ids     SequentialIDGenerator
	maxZoom uint32
}

// NewRegionStore creates a store over the universe [-extents, extents)
// subdivided at most maxDepth times.
func NewRegionStore(extents, maxDepth int) (*RegionStore, error) {
	tree, err := quadtree.New[*Region](extents, maxDepth)
	if err != nil {
		return nil, errors.New("creating region tree failed").
			WithType(errors.Type(err)).
			Wrap(err)
	}

	return &RegionStore{
		tree:    tree,
		items:   make(map[uint32]*quadtree.Item[*Region]),
		maxZoom: uint32(maxDepth),
	}, nil
}

// Extents returns the half side length of the store universe.
func (s *RegionStore) Extents() int {
	return s.tree.Extents()
}

// MaxZoom returns the deepest tile zoom level whose tiles are stored at their
// own node.
func (s *RegionStore) MaxZoom() uint32 {
	return s.maxZoom
}

// Add indexes a copy of the given region. The id, uuid and creation time are
// assigned by the store.
func (s *RegionStore) Add(r Region) (*Region, error) {
	if !r.Box.Valid() {
		return nil, errors.New("invalid region box").
			WithType(quadtree.ErrTypeInvalidBox).
			WithTag("box", r.Box.String())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	region := &r
	region.ID = s.ids.New()
	region.UUID = uuid.New().String()
	region.CreatedAt = time.Now()

	item := quadtree.NewItem(region.Box, region)
	if err := s.tree.Insert(item); err != nil {
		s.ids.Reuse(region.ID)
		return nil, errors.New("indexing region failed").
			WithType(errors.Type(err)).
			WithTag("region_id", region.ID).
			Wrap(err)
	}
	s.items[region.ID] = item

	instrumentAddRegion(region.Source)
	logs.WithTag("region_id", region.ID).
		WithTag("source", region.Source).
		WithTag("box", region.Box.String()).
		Debug("region added")
	return region, nil
}

// AddTile indexes the region covered by a tile.
func (s *RegionStore) AddTile(id tile.ID, source string, tags map[string]string) (*Region, error) {
	box, err := id.Box(s.Extents())
	if err != nil {
		return nil, err
	}

	return s.Add(Region{
		Source: source,
		Tile:   &id,
		Box:    box,
		Tags:   tags,
	})
}

// Get returns the region with the given id.
func (s *RegionStore) Get(id uint32) (*Region, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return item.Payload, true
}

// Remove removes the region with the given id. It reports whether the region
// was indexed.
func (s *RegionStore) Remove(id uint32) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, ok := s.items[id]
	if !ok {
		return false, nil
	}

	removed, err := s.tree.Remove(item.Box, item.Payload)
	if err != nil {
		return false, errors.New("removing region failed").
			WithType(errors.Type(err)).
			WithTag("region_id", id).
			Wrap(err)
	}
	if !removed {
		// The map and the tree must agree on what is indexed.
		return false, errors.New("region missing from tree").
			WithTag("region_id", id).
			WithTag("box", item.Box.String())
	}

	delete(s.items, id)
	s.ids.Reuse(id)

	instrumentRemoveRegion(item.Payload.Source)
	logs.WithTag("region_id", id).
		WithTag("box", item.Box.String()).
		Debug("region removed")
	return true, nil
}

// Query returns the regions overlapping the given box, searching the whole
// tree. A positive limit caps the number of returned regions. It reports
// whether every overlapping region was returned.
func (s *RegionStore) Query(b quadtree.Box, limit int) ([]*Region, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	start := time.Now()
	var regions []*Region

	completed, err := s.tree.Search(b, func(r *Region) bool {
		regions = append(regions, r)
		return limit <= 0 || len(regions) < limit
	})
	instrumentQuery(queryVariantTree, start, len(regions), completed, err)
	if err != nil {
		return nil, false, errors.New("querying regions failed").
			WithType(errors.Type(err)).
			WithTag("box", b.String()).
			Wrap(err)
	}
	return regions, completed, nil
}

// QueryShape returns the regions overlapping the given box that are stored at
// or below the node a region shaped like the box would be stored at.
// Coarser regions are skipped. It suits queries using the same tiling as
// the indexed regions.
func (s *RegionStore) QueryShape(b quadtree.Box, limit int) ([]*Region, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	start := time.Now()
	var regions []*Region

	completed, err := s.tree.SearchShape(b, func(it *quadtree.Item[*Region]) bool {
		regions = append(regions, it.Payload)
		return limit <= 0 || len(regions) < limit
	})
	instrumentQuery(queryVariantShape, start, len(regions), completed, err)
	if err != nil {
		return nil, false, errors.New("querying regions by shape failed").
			WithType(errors.Type(err)).
			WithTag("box", b.String()).
			Wrap(err)
	}
	return regions, completed, nil
}

// QueryTile returns the regions overlapping a tile. With shape set, only
// regions stored at or below the tile node are returned.
func (s *RegionStore) QueryTile(id tile.ID, shape bool, limit int) ([]*Region, bool, error) {
	box, err := id.Box(s.Extents())
	if err != nil {
		return nil, false, err
	}

	if shape {
		return s.QueryShape(box, limit)
	}
	return s.Query(box, limit)
}

// Count returns the number of indexed regions.
func (s *RegionStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.tree.Size()
}

// Stats returns the shape of the index tree.
func (s *RegionStore) Stats() (RegionStats, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := RegionStats{
		Regions:     s.tree.Size(),
		Nodes:       s.tree.NodeCount(),
		PooledNodes: s.tree.PooledNodes(),
		Extents:     s.tree.Extents(),
		MaxDepth:    s.tree.MaxDepth(),
		Levels:      make([]LevelStats, s.tree.MaxDepth()+1),
	}
	for i := range stats.Levels {
		stats.Levels[i].Depth = i
	}

	_, err := s.tree.Collect(func(n quadtree.Node[*Region]) bool {
		level := &stats.Levels[n.Depth()]
		level.Nodes++
		level.Regions += n.ItemCount()
		level.MaxRegions = max(level.MaxRegions, n.ItemCount())
		return true
	})
	if err != nil {
		return RegionStats{}, errors.New("collecting region tree stats failed").Wrap(err)
	}
	return stats, nil
}

// Clear removes every region.
func (s *RegionStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := s.tree.Size()
	s.tree.Clear()
	s.items = make(map[uint32]*quadtree.Item[*Region])
	s.ids.Reset()

	instrumentClearRegions()
	logs.WithTag("regions", count).Info("region store cleared")
}
