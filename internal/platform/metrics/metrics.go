package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry. All methods are safe on a nil receiver
// so components can run without metrics in tests.
type Collector struct {
	reg *prometheus.Registry

	ProviderCalls     *prometheus.CounterVec   // kind, provider, outcome
	ProviderDuration  *prometheus.HistogramVec // kind, provider
	ProviderFallbacks *prometheus.CounterVec   // kind

	Candidates     *prometheus.CounterVec // status
	SolverDuration *prometheus.HistogramVec
	Routes         *prometheus.CounterVec // provider

	HTTPRequests *prometheus.CounterVec // method, route, status
	HTTPDuration *prometheus.HistogramVec

	EventsPublished *prometheus.CounterVec // outcome
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "addris_provider_calls_total",
			Help: "External provider calls by kind, provider and outcome.",
		}, []string{"kind", "provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "addris_provider_call_duration_seconds",
			Help:    "Duration of external provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind", "provider"}),
		ProviderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "addris_provider_fallbacks_total",
			Help: "Times a chain advanced past a failing provider.",
		}, []string{"kind"}),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "addris_address_candidates_total",
			Help: "Address candidates produced, by final status.",
		}, []string{"status"}),
		SolverDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "addris_solver_duration_seconds",
			Help:    "Route optimizer run time by method.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		Routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "addris_routes_computed_total",
			Help: "Routes computed, by answering distance provider.",
		}, []string{"provider"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "addris_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "addris_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"method", "route"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "addris_events_published_total",
			Help: "NATS events published by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.ProviderCalls, c.ProviderDuration, c.ProviderFallbacks,
		c.Candidates, c.SolverDuration, c.Routes,
		c.HTTPRequests, c.HTTPDuration, c.EventsPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveProviderCall(kind, provider string, d time.Duration, outcome string) {
	if c == nil {
		return
	}
	c.ProviderCalls.WithLabelValues(kind, provider, outcome).Inc()
	c.ProviderDuration.WithLabelValues(kind, provider).Observe(d.Seconds())
}

func (c *Collector) IncFallback(kind string) {
	if c == nil {
		return
	}
	c.ProviderFallbacks.WithLabelValues(kind).Inc()
}

func (c *Collector) IncCandidate(status string) {
	if c == nil {
		return
	}
	c.Candidates.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveSolver(method string, d time.Duration) {
	if c == nil {
		return
	}
	c.SolverDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) IncRoute(provider string) {
	if c == nil {
		return
	}
	c.Routes.WithLabelValues(provider).Inc()
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) EventPublished(err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.EventsPublished.WithLabelValues(outcome).Inc()
}
