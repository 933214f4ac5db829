// Package metrics exports reader, writer and database activity to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a record is not dispatched to stream handlers
const (
	SkipUnknownType = "unknown_type"
	SkipDesync      = "desync"
	SkipDecodeError = "decode_error"
)

type collector struct {
	RecordsWritten  *prometheus.CounterVec
	RecordsRead     *prometheus.CounterVec
	RecordsSkipped  *prometheus.CounterVec
	FilesOpened     *prometheus.CounterVec
	FilesClosed     *prometheus.CounterVec
	Queries         *prometheus.CounterVec
	QueryResultSize prometheus.Histogram
	SessionsIndexed *prometheus.CounterVec
}

var stats = newMetricCollector()

func newMetricCollector() *collector {
	c := &collector{
		RecordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_records_written_total", Help: "Event records appended to stats files"},
			[]string{"event_type"}),

		RecordsRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_records_read_total", Help: "Event records decoded and dispatched"},
			[]string{"event_type"}),

		RecordsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_records_skipped_total", Help: "Event records skipped while streaming"},
			[]string{"reason"}),

		FilesOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_files_opened_total", Help: "Stats files opened"},
			[]string{"mode", "result"}),

		FilesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_files_closed_total", Help: "Stats files finalized"},
			[]string{"result"}),

		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_queries_total", Help: "Database queries executed"},
			[]string{"source"}),

		QueryResultSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "statsdb_query_result_size",
				Help:    "Events returned per query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			}),

		SessionsIndexed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statsdb_sessions_indexed_total", Help: "Sessions indexed into the database"},
			[]string{"source"}),
	}
	for _, metric := range []prometheus.Collector{
		c.RecordsWritten,
		c.RecordsRead,
		c.RecordsSkipped,
		c.FilesOpened,
		c.FilesClosed,
		c.Queries,
		c.QueryResultSize,
		c.SessionsIndexed,
	} {
		_ = prometheus.Register(metric)
	}
	return c
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func RecordWritten(eventType string) {
	stats.RecordsWritten.With(prometheus.Labels{"event_type": eventType}).Inc()
}

func RecordRead(eventType string) {
	stats.RecordsRead.With(prometheus.Labels{"event_type": eventType}).Inc()
}

func RecordSkipped(reason string) {
	stats.RecordsSkipped.With(prometheus.Labels{"reason": reason}).Inc()
}

// FileOpened counts an open attempt, mode is "read" or "write"
func FileOpened(mode string, err error) {
	stats.FilesOpened.With(prometheus.Labels{"mode": mode, "result": result(err)}).Inc()
}

func FileClosed(err error) {
	stats.FilesClosed.With(prometheus.Labels{"result": result(err)}).Inc()
}

// QueryExecuted counts a query against the local or remote source and records its result size
func QueryExecuted(source string, results int) {
	stats.Queries.With(prometheus.Labels{"source": source}).Inc()
	stats.QueryResultSize.Observe(float64(results))
}

func SessionIndexed(source string) {
	stats.SessionsIndexed.With(prometheus.Labels{"source": source}).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
