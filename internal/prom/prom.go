package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric this service exports.
const Namespace = "hpcoords"

// Time starts a timer and returns the func that records the elapsed time on o. Use it as
// `defer prom.Time(o)()`.
func Time(o prometheus.Observer) func() {
	t := prometheus.NewTimer(o)
	return func() { t.ObserveDuration() }
}

// ErrCount increments c if *err is non-nil when the deferred call runs.
func ErrCount(c prometheus.Counter, err *error) {
	if err != nil && *err != nil {
		c.Inc()
	}
}

var (
	// EventsIngested counts stream events folded into an aggregator, by outcome.
	EventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "snapshot",
		Name:      "events_total",
		Help:      "Trials snapshot events received, labelled by whether they were applied.",
	}, []string{"outcome"})

	// TrialsIngested counts trial records folded into an aggregator.
	TrialsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "snapshot",
		Name:      "trials_total",
		Help:      "Trial records applied to snapshots.",
	})

	// ActiveSubscriptions is the number of open snapshot subscriptions.
	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "stream",
		Name:      "active_subscriptions",
		Help:      "Open trials snapshot subscriptions.",
	})

	// StreamErrors counts subscriptions that ended with an upstream error.
	StreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "stream",
		Name:      "errors_total",
		Help:      "Trials snapshot streams that failed.",
	}, []string{"source"})

	// SnapshotQuerySeconds times the trials snapshot database query.
	SnapshotQuerySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "db",
		Name:      "trials_snapshot_seconds",
		Help:      "Latency of the trials snapshot query.",
		Buckets:   prometheus.DefBuckets,
	})

	// RequestSeconds times HTTP requests by route and status code.
	RequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "Latency of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "code"})
)

// Register adds every collector in this package to r.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		EventsIngested, TrialsIngested, ActiveSubscriptions, StreamErrors, SnapshotQuerySeconds,
		RequestSeconds,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
