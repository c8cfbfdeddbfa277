package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the web front. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	UpstreamTotal       *prometheus.CounterVec
	PollTicksTotal      *prometheus.CounterVec
	ActivePollers       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aivis_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aivis_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UpstreamTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aivis_upstream_requests_total",
			Help: "Backend API calls by outcome kind.",
		}, []string{"method", "kind"}),
		PollTicksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aivis_poll_ticks_total",
			Help: "Account status poll ticks by outcome.",
		}, []string{"outcome"}),
		ActivePollers: f.NewGauge(prometheus.GaugeOpts{
			Name: "aivis_active_pollers",
			Help: "Account status pollers currently running.",
		}),
	}
}

func (m *Metrics) ObserveUpstream(method, kind string) {
	if m == nil {
		return
	}
	m.UpstreamTotal.WithLabelValues(method, kind).Inc()
}

func (m *Metrics) ObservePoll(outcome string) {
	if m == nil {
		return
	}
	m.PollTicksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.ActivePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.ActivePollers.Dec()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Middleware records request counts and durations labelled by the matched
// route pattern, which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
