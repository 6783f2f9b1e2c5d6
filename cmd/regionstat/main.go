package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tileindex/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/segmentio/encoding/json"
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Fixture  string `cli:"" env:"REGIONSTAT_FIXTURE"   help:"The YAML file describing the regions to index and the queries to run."`
	LogLevel string `cli:"" env:"REGIONSTAT_LOG_LEVEL" help:"Log level (debug|info|warning|error)."`
	Help     bool   `cli:"" env:"-"                    help:"Show help."`
}

func main() {
	conf := config{
		LogLevel: logs.InfoLevel.String(),
	}

	cli.Register().
		Help("Indexes the regions of a fixture and prints the resulting tree shape and query results.").
		Options(&conf)
	cli.Load()

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	if conf.Fixture == "" {
		logs.Fatal(errors.New("no fixture given"))
	}

	f, err := loadFixture(conf.Fixture)
	if err != nil {
		logs.Fatal(err)
	}

	if err := run(os.Stdout, f); err != nil {
		logs.Fatal(err)
	}
}

func run(w io.Writer, f fixture) error {
	store, err := models.NewRegionStore(f.Extents, f.MaxDepth)
	if err != nil {
		return err
	}

	start := time.Now()
	for i, r := range f.Regions {
		if r.Tile != nil {
			_, err = store.AddTile(*r.Tile, r.Source, r.Tags)
		} else {
			_, err = store.Add(models.Region{
				Source: r.Source,
				Box:    *r.Box,
				Tags:   r.Tags,
			})
		}
		if err != nil {
			return errors.New("indexing fixture region failed").
				WithTag("index", i).
				Wrap(err)
		}
	}
	indexDuration := time.Since(start)

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "indexed %s regions from a %s fixture in %s\n\n",
		humanize.Comma(int64(stats.Regions)),
		humanize.Bytes(uint64(f.size)),
		indexDuration,
	)
	fmt.Fprintln(w, renderStats(stats))

	if len(f.Queries) == 0 {
		return nil
	}

	queries := table.NewWriter()
	queries.SetStyle(table.StyleLight)
	queries.AppendHeader(table.Row{"Query", "Target", "Mode", "Matches", "Completed", "Duration"})

	for i, q := range f.Queries {
		name := q.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}

		var (
			target    string
			regions   []*models.Region
			completed bool
		)

		start := time.Now()
		if q.Tile != nil {
			target = "tile " + q.Tile.String()
			regions, completed, err = store.QueryTile(*q.Tile, q.Shape, q.Limit)
		} else {
			target = "box " + q.Box.String()
			query := store.Query
			if q.Shape {
				query = store.QueryShape
			}
			regions, completed, err = query(*q.Box, q.Limit)
		}
		if err != nil {
			return errors.New("running fixture query failed").
				WithTag("query", name).
				Wrap(err)
		}

		queries.AppendRow(table.Row{
			name,
			target,
			queryMode(q.Shape),
			humanize.Comma(int64(len(regions))),
			completed,
			time.Since(start),
		})
	}

	fmt.Fprintln(w, queries.Render())
	return nil
}

func renderStats(stats models.RegionStats) string {
	levels := table.NewWriter()
	levels.SetStyle(table.StyleLight)
	levels.AppendHeader(table.Row{"Depth", "Node size", "Nodes", "Regions", "Longest chain"})

	for _, l := range stats.Levels {
		if l.Nodes == 0 {
			continue
		}

		levels.AppendRow(table.Row{
			l.Depth,
			humanize.Comma(int64((2 * stats.Extents) >> l.Depth)),
			humanize.Comma(int64(l.Nodes)),
			humanize.Comma(int64(l.Regions)),
			l.MaxRegions,
		})
	}

	levels.AppendFooter(table.Row{
		"Total",
		"",
		humanize.Comma(int64(stats.Nodes)),
		humanize.Comma(int64(stats.Regions)),
		fmt.Sprintf("%d pooled", stats.PooledNodes),
	})
	return levels.Render()
}

func queryMode(shape bool) string {
	if shape {
		return "shape"
	}
	return "tree"
}
