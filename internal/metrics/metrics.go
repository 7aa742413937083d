// Package metrics exposes Prometheus instrumentation for the scraper and the on-demand path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "calsync"

// Metrics holds all collectors of the service.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec
	RoomsScraped     *prometheus.CounterVec
	EventsScraped    prometheus.Counter
	PassDuration     prometheus.Histogram
	EventsPromoted   prometheus.Gauge
	CalendarRequests *prometheus.CounterVec
}

// New creates and registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream calendar requests by outcome.",
		}, []string{"outcome"}),
		RoomsScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "rooms_total",
			Help:      "Rooms scraped by the bulk scraper, split by whether a smaller retry was needed.",
		}, []string{"result"}),
		EventsScraped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "events_total",
			Help:      "Events fetched by the bulk scraper.",
		}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a full scrape pass.",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 10), // 1min to ~8.5h
		}),
		EventsPromoted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "events_promoted",
			Help:      "Rows copied from staging to production by the last promotion.",
		}),
		CalendarRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "requests_total",
			Help:      "On-demand calendar lookups by the path that served them.",
		}, []string{"path"}),
	}
}
