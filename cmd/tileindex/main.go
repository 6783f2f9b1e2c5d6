package main

import (
	"context"
	"fmt"
	"math/bits"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/tileindex/featureflag"
	tihttp "github.com/aukilabs/tileindex/http"
	"github.com/aukilabs/tileindex/models"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
	tiwebsocket "github.com/aukilabs/tileindex/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The tileindex version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "tileindex_info",
		Help:        "Tileindex information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr                string        `cli:""        env:"TILEINDEX_ADDR"                  help:"Listening address for client connections."`
	AdminAddr           string        `cli:""        env:"TILEINDEX_ADMIN_ADDR"            help:"Admin listening address."`
	LogLevel            string        `cli:""        env:"TILEINDEX_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent           bool          `cli:""        env:"TILEINDEX_LOG_INDENT"            help:"Indent logs."`
	Extents             int           `cli:""        env:"TILEINDEX_EXTENTS"               help:"Half the side length of the indexed universe. Must be a power of two."`
	MaxDepth            int           `cli:""        env:"TILEINDEX_MAX_DEPTH"             help:"The maximum number of subdivisions of the universe."`
	MaxQueryLimit       int           `cli:",hidden" env:"TILEINDEX_MAX_QUERY_LIMIT"       help:"The maximum number of regions returned by a query."`
	ViewportIdleTimeout time.Duration `cli:",hidden" env:"TILEINDEX_VIEWPORT_IDLE_TIMEOUT" help:"Time until an idle viewport client will be disconnected."`
	LogSummaryInterval  time.Duration `cli:",hidden" env:"TILEINDEX_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	FeatureFlags        []string      `cli:",hidden" env:"TILEINDEX_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version             bool          `cli:""        env:"-"                               help:"Show version."`
	Help                bool          `cli:""        env:"-"                               help:"Show help."`
}

func main() {
	conf := config{
		Addr:                ":4000",
		AdminAddr:           ":18190",
		LogLevel:            logs.InfoLevel.String(),
		Extents:             1 << 20,
		MaxDepth:            16,
		MaxQueryLimit:       tihttp.DefaultQueryLimit,
		ViewportIdleTimeout: time.Minute * 5,
		LogSummaryInterval:  time.Minute,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the tileindex server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}
	quadtree.Verbose = strings.EqualFold(conf.LogLevel, "debug")

	errors.Encoder = json.Marshal

	store, err := models.NewRegionStore(conf.Extents, conf.MaxDepth)
	if err != nil {
		logs.Fatal(errors.New("creating region store failed").Wrap(err))
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	var service http.ServeMux

	regions := tihttp.RegionHandler{
		Store:         store,
		FeatureFlags:  featureFlags,
		MaxQueryLimit: conf.MaxQueryLimit,
	}
	regions.Register(&service)

	service.HandleFunc("GET /health", tihttp.HandleHealthCheck)
	service.HandleFunc("GET /version", tihttp.HandleVersion(version))

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	service.HandleFunc("GET /ready", tihttp.HandleReadyCheck(readinessCheck))

	featureFlags.IfNotSet(featureflag.FlagDisableViewportStream, func() {
		service.Handle("/viewport", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h tiwebsocket.Handler = &tiwebsocket.ViewportHandler{
					Store:             store,
					FeatureFlags:      featureFlags,
					ClientIdleTimeout: conf.ViewportIdleTimeout,
					MaxQueryLimit:     conf.MaxQueryLimit,
				}
				h = tiwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = tiwebsocket.HandlerWithMetrics(h)
				defer h.Close()

				tiwebsocket.Handle(ctx, conn, h)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", tihttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", tihttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("extents", conf.Extents).
		WithTag("max_depth", conf.MaxDepth).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting tileindex server")

	tihttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(
			tihttp.HandleWithCORS(&service),
			tihttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if conf.Extents <= 0 || bits.OnesCount(uint(conf.Extents)) != 1 {
		return errors.New("extents must be a positive power of two").
			WithTag("extents", conf.Extents)
	}

	if conf.MaxDepth < 0 || conf.MaxDepth > quadtree.MaxDepthLimit || conf.MaxDepth > tile.MaxZoom {
		return errors.New("invalid max depth").
			WithTag("max_depth", conf.MaxDepth).
			WithTag("limit", quadtree.MaxDepthLimit)
	}

	if maxDepth := bits.Len(uint(conf.Extents)); conf.MaxDepth > maxDepth {
		return errors.New("max depth is finer than the universe resolution").
			WithTag("max_depth", conf.MaxDepth).
			WithTag("extents", conf.Extents).
			WithTag("limit", maxDepth)
	}

	if conf.MaxQueryLimit <= 0 {
		return errors.New("max query limit must be positive").
			WithTag("max_query_limit", conf.MaxQueryLimit)
	}

	if conf.ViewportIdleTimeout <= 0 || conf.LogSummaryInterval <= 0 {
		return errors.New("durations must be positive").
			WithTag("viewport_idle_timeout", conf.ViewportIdleTimeout).
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	return nil
}
