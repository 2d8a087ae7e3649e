// Package metrics exposes catalogue activity as Prometheus metrics.
//
// A Recorder owns its own registry, so tests and multiple servers in one
// process never collide on the default registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogue"

// Recorder implements core.Observer and instruments HTTP handlers.
type Recorder struct {
	reg *prometheus.Registry

	editionUpserts *prometheus.CounterVec
	editionDeletes prometheus.Counter
	tableWrites    *prometheus.CounterVec
	commitDuration prometheus.Histogram
	commitTables   prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		editionUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edition_upserts_total",
			Help:      "Editions written, by variant.",
		}, []string{"variant"}),
		editionDeletes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edition_deletes_total",
			Help:      "Edition delete requests completed.",
		}),
		tableWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_writes_total",
			Help:      "Table files rewritten, by table.",
		}, []string{"table"}),
		commitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tx_commit_duration_seconds",
			Help:      "Time to commit a transaction, including the journal write.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		commitTables: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tx_commit_tables",
			Help:      "Tables written per committed transaction.",
			Buckets:   prometheus.LinearBuckets(1, 1, 9),
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registerer returns the registry for additional collectors.
func (r *Recorder) Registerer() prometheus.Registerer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// TableWritten implements core.Observer.
func (r *Recorder) TableWritten(table string) {
	r.tableWrites.WithLabelValues(table).Inc()
}

// TxCommitted implements core.Observer.
func (r *Recorder) TxCommitted(tables int, d time.Duration) {
	r.commitDuration.Observe(d.Seconds())
	r.commitTables.Observe(float64(tables))
}

// EditionUpserted implements core.Observer.
func (r *Recorder) EditionUpserted(variant string) {
	r.editionUpserts.WithLabelValues(variant).Inc()
}

// EditionDeleted implements core.Observer.
func (r *Recorder) EditionDeleted() {
	r.editionDeletes.Inc()
}

// Middleware records request counts and latency by chi route pattern.
// Unmatched requests are recorded under "unmatched".
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
