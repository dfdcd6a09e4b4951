package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "noticeboard"

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	noticesCreated     prometheus.Counter
	noticesDeleted     prometheus.Counter
	attachmentsStored  prometheus.Counter
	attachmentFailures *prometheus.CounterVec
	orphansSwept       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		noticesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_created_total",
			Help:      "Notices persisted.",
		}),
		noticesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_deleted_total",
			Help:      "Notices deleted together with their attachments.",
		}),
		attachmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_stored_total",
			Help:      "Attachments written and linked to a notice.",
		}),
		attachmentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_failures_total",
			Help:      "Attachment writes that failed after the notice was persisted.",
		}, []string{"stage"}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_files_removed_total",
			Help:      "Stored files removed because no attachment row references them.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.noticesCreated,
		m.noticesDeleted,
		m.attachmentsStored,
		m.attachmentFailures,
		m.orphansSwept,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) NoticeCreated() {
	if m != nil {
		m.noticesCreated.Inc()
	}
}

func (m *Metrics) NoticeDeleted() {
	if m != nil {
		m.noticesDeleted.Inc()
	}
}

func (m *Metrics) AttachmentStored() {
	if m != nil {
		m.attachmentsStored.Inc()
	}
}

// AttachmentFailed counts a post-notice attachment failure; stage is "store"
// or "link".
func (m *Metrics) AttachmentFailed(stage string) {
	if m != nil {
		m.attachmentFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OrphansSwept(n int) {
	if m != nil && n > 0 {
		m.orphansSwept.Add(float64(n))
	}
}
