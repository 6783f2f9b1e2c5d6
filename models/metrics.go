package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceLabel  = "source"
	opLabel      = "op"
	variantLabel = "variant"
	resultLabel  = "result"

	queryVariantTree  = "tree"
	queryVariantShape = "shape"

	queryResultCompleted = "completed"
	queryResultTruncated = "truncated"
	queryResultError     = "error"
)

var (
	regionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "region_count",
		Help: "The number of indexed regions.",
	}, []string{sourceLabel})

	regionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_ops_total",
		Help: "The total number of region insertions and removals.",
	}, []string{opLabel})

	regionQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_queries_total",
		Help: "The total number of overlap queries.",
	}, []string{variantLabel, resultLabel})

	regionQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "region_query_latency",
		Help:    "The time to run an overlap query.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{variantLabel})

	regionQueryMatches = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "region_query_matches",
		Help:    "The number of regions returned by an overlap query.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{variantLabel})
)

func instrumentAddRegion(source string) {
	regionCount.
		With(prometheus.Labels{sourceLabel: source}).
		Inc()
	regionOps.
		With(prometheus.Labels{opLabel: "add"}).
		Inc()
}

func instrumentRemoveRegion(source string) {
	regionCount.
		With(prometheus.Labels{sourceLabel: source}).
		Dec()
	regionOps.
		With(prometheus.Labels{opLabel: "remove"}).
		Inc()
}

func instrumentClearRegions() {
	regionCount.Reset()
	regionOps.
		With(prometheus.Labels{opLabel: "clear"}).
		Inc()
}

func instrumentQuery(variant string, start time.Time, matches int, completed bool, err error) {
	result := queryResultCompleted
	switch {
	case err != nil:
		result = queryResultError
	case !completed:
		result = queryResultTruncated
	}

	regionQueries.
		With(prometheus.Labels{variantLabel: variant, resultLabel: result}).
		Inc()
	regionQueryLatency.
		With(prometheus.Labels{variantLabel: variant}).
		Observe(time.Since(start).Seconds())
	regionQueryMatches.
		With(prometheus.Labels{variantLabel: variant}).
		Observe(float64(matches))
}
