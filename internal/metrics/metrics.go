// Package metrics exposes Prometheus instruments for audits, rank tracking,
// A/B events and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seopulse"

// Collector owns its registry so several servers can live in one process.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	audits       *prometheus.CounterVec
	scores       prometheus.Histogram
	rankTracks   prometheus.Counter
	keywordsRank prometheus.Counter
	abEvents     *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	testsCreated prometheus.Counter
}

// New registers every instrument on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		audits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audits_total",
				Help:      "Performance audits run, by outcome",
			},
			[]string{"status"},
		),
		scores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "performance_score",
				Help:      "Performance scores of measured pages",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		rankTracks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rank_tracking_runs_total",
				Help:      "Rank tracking runs",
			},
		),
		keywordsRank: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keywords_ranked_total",
				Help:      "Keyword positions recorded",
			},
		),
		abEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ab_events_total",
				Help:      "A/B test events, by type",
			},
			[]string{"event"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"route", "method", "status"},
		),
		testsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ab_tests_created_total",
				Help:      "A/B tests created",
			},
		),
	}

	c.registry.MustRegister(
		c.audits,
		c.scores,
		c.rankTracks,
		c.keywordsRank,
		c.abEvents,
		c.httpDuration,
		c.testsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the exposition format for this collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveAudit(score int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.audits.WithLabelValues("error").Inc()
		return
	}
	c.audits.WithLabelValues("ok").Inc()
	c.scores.Observe(float64(score))
}

func (c *Collector) ObserveRankTrack(keywords int) {
	if c == nil {
		return
	}
	c.rankTracks.Inc()
	c.keywordsRank.Add(float64(keywords))
}

func (c *Collector) ObserveABEvent(event string) {
	if c == nil {
		return
	}
	c.abEvents.WithLabelValues(event).Inc()
}

func (c *Collector) ObserveTestCreated() {
	if c == nil {
		return
	}
	c.testsCreated.Inc()
}

func (c *Collector) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
