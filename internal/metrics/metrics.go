package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_parsed_total",
		Help: "Rows read from a source CSV, valid or not.",
	}, []string{"source"})

	RowsInvalid = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_invalid_total",
		Help: "Required fields that failed normalization, by source and field.",
	}, []string{"source", "field"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_fetch_duration_seconds",
		Help:    "Duration of the HTTP fetch of a source CSV.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)
