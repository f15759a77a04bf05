// Package metrics bundles the Prometheus collectors for lookups, result sets
// and the HTTP surface.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Lookup outcomes.
const (
	OutcomeHit     = "hit"
	OutcomeJoined  = "joined"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
)

// Collector holds every metric. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Lookups          *prometheus.CounterVec
	LookupDurations  *prometheus.HistogramVec
	AnnotationWrites *prometheus.CounterVec
	VisibleResults   prometheus.Gauge
	BreakerOpen      prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	HTTPDurations    *prometheus.HistogramVec
}

// NewCollector registers all metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Lookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "residences_lookups_total",
		Help: "Enrichment lookups by kind and outcome.",
	}, []string{"kind", "outcome"})); err != nil {
		return nil, err
	}
	if c.LookupDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "residences_lookup_duration_seconds",
		Help:    "External enrichment call latency in seconds.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.AnnotationWrites, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "residences_annotation_writes_total",
		Help: "Annotation mutations by collection.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.VisibleResults, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "residences_visible",
		Help: "Size of the most recently computed visible result set.",
	})); err != nil {
		return nil, err
	}
	if c.BreakerOpen, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "residences_enrich_breaker_open",
		Help: "1 while the enrichment provider breaker rejects calls.",
	})); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "residences_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "residences_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})); err != nil {
		return nil, err
	}

	return c, nil
}

// register adds col to reg, returning the already-registered collector of the
// same type when one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, eris.Wrap(err, "metrics: register collector")
	}
	return col, nil
}

// ObserveLookup counts one lookup outcome.
func (c *Collector) ObserveLookup(kind, outcome string) {
	if c == nil {
		return
	}
	c.Lookups.WithLabelValues(kind, outcome).Inc()
}

// ObserveLookupDuration records the latency of one external call.
func (c *Collector) ObserveLookupDuration(kind string, d time.Duration) {
	if c == nil {
		return
	}
	c.LookupDurations.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveAnnotationWrite counts one annotation mutation.
func (c *Collector) ObserveAnnotationWrite(kind string) {
	if c == nil {
		return
	}
	c.AnnotationWrites.WithLabelValues(kind).Inc()
}

// SetVisible records the size of the visible result set.
func (c *Collector) SetVisible(n int) {
	if c == nil {
		return
	}
	c.VisibleResults.Set(float64(n))
}

// SetBreakerOpen records whether the enrichment breaker is rejecting calls.
func (c *Collector) SetBreakerOpen(open bool) {
	if c == nil {
		return
	}
	if open {
		c.BreakerOpen.Set(1)
	} else {
		c.BreakerOpen.Set(0)
	}
}

// ObserveHTTP records one handled request.
func (c *Collector) ObserveHTTP(route, method string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler exposes the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
