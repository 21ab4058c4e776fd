// Package metrics exposes playlist run counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rizkirmdhn/catcast/pkg/models"
)

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catcast_events_total",
		Help: "Run events by status",
	}, []string{"status"})

	UpstreamAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catcast_upstream_attempts_total",
		Help: "Requests made to catcast.tv by target and final outcome",
	}, []string{"target", "outcome"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catcast_runs_total",
		Help: "Finished playlist runs by result",
	}, []string{"result"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catcast_run_duration_seconds",
		Help:    "Wall time of a playlist run",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
	})

	LastRunChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catcast_last_run_channels",
		Help: "Channels written by the last finished run",
	})

	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catcast_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
)

// Upstream targets
const (
	TargetCatalog = "catalog"
	TargetChannel = "channel"
)

// Observe counts a run event. Completed events also update the last-run gauges.
func Observe(l models.GenerateLog) {
	status := l.Status
	if status == "" {
		status = "unknown"
	}
	EventsTotal.WithLabelValues(status).Inc()

	switch l.Status {
	case models.StatusCompleted:
		RunsTotal.WithLabelValues("completed").Inc()
		if l.Stats != nil {
			LastRunChannels.Set(float64(l.Stats.ChannelsEmitted))
		}
		LastRunTimestamp.SetToCurrentTime()
	case models.StatusFailed:
		RunsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordAttempts adds the requests one fetch or resolve made
func RecordAttempts(target, outcome string, attempts int) {
	if attempts <= 0 {
		return
	}
	UpstreamAttemptsTotal.WithLabelValues(target, outcome).Add(float64(attempts))
}

// ObserveRun records how long a run took
func ObserveRun(d time.Duration) {
	RunDuration.Observe(d.Seconds())
}
