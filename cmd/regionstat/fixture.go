package main

import (
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
	"gopkg.in/yaml.v3"
)

// fixture describes a set of regions to index and queries to run against
// them.
type fixture struct {
	Extents  int             `yaml:"extents"`
	MaxDepth int             `yaml:"max_depth"`
	Regions  []fixtureRegion `yaml:"regions"`
	Queries  []fixtureQuery  `yaml:"queries"`

	// The size of the fixture file in bytes.
	size int
}

// fixtureRegion is either a box or a tile.
type fixtureRegion struct {
	Source string            `yaml:"source"`
	Box    *quadtree.Box     `yaml:"box"`
	Tile   *tile.ID          `yaml:"tile"`
	Tags   map[string]string `yaml:"tags"`
}

type fixtureQuery struct {
	Name  string        `yaml:"name"`
	Box   *quadtree.Box `yaml:"box"`
	Tile  *tile.ID      `yaml:"tile"`
	Shape bool          `yaml:"shape"`
	Limit int           `yaml:"limit"`
}

func loadFixture(filename string) (fixture, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return fixture{}, errors.New("reading fixture failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	f, err := parseFixture(b)
	if err != nil {
		return fixture{}, errors.New("parsing fixture failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	return f, nil
}

func parseFixture(b []byte) (fixture, error) {
	var f fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fixture{}, err
	}
	f.size = len(b)

	for i, r := range f.Regions {
		if (r.Box == nil) == (r.Tile == nil) {
			return fixture{}, errors.New("region must have either a box or a tile").
				WithTag("index", i)
		}
	}

	for i, q := range f.Queries {
		if (q.Box == nil) == (q.Tile == nil) {
			return fixture{}, errors.New("query must have either a box or a tile").
				WithTag("index", i)
		}
	}
	return f, nil
}
