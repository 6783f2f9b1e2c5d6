package models

import (
	"time"

	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
)

// Region represents a registered area of the universe, such as the bounds of
// a cached map region or of a loaded tile.
type Region struct {
	ID        uint32            `json:"id"`
	UUID      string            `json:"uuid"`
	Source    string            `json:"source,omitempty"`
	Tile      *tile.ID          `json:"tile,omitempty"`
	Box       quadtree.Box      `json:"box"`
	Tags      map[string]string `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RegionStats describes the shape of a region store.
type RegionStats struct {
	Regions     int          `json:"regions"`
	Nodes       int          `json:"nodes"`
	PooledNodes int          `json:"pooled_nodes"`
	Extents     int          `json:"extents"`
	MaxDepth    int          `json:"max_depth"`
	Levels      []LevelStats `json:"levels"`
}

// LevelStats describes one depth of a region store tree.
type LevelStats struct {
	Depth int `json:"depth"`
	Nodes int `json:"nodes"`

	// Regions stored directly at nodes of this depth.
	Regions int `json:"regions"`

	// Longest chain of regions stored at a single node of this depth.
	MaxRegions int `json:"max_regions"`
}
