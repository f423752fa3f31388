package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
)

// Prometheus metrics for pipeline runs.
var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelsender_runs_total",
			Help: "Total pipeline runs by terminal status",
		},
		[]string{"status"},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelsender_events_total",
			Help: "Total input events by classification",
		},
		[]string{"classification"},
	)

	PixelSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelsender_pixel_sends_total",
			Help: "Total pixel dispatch attempts by outcome",
		},
		[]string{"status"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixelsender_run_duration_seconds",
			Help:    "Wall-clock duration of pipeline runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all pipeline metrics with the default registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(PixelSendsTotal)
	prometheus.MustRegister(RunDuration)
}

// ObserveRun records the counters of one finished run. The summary
// shape decides the run status: normal runs count classifications and
// send outcomes, dry runs count classifications only, fatal failures
// count just the run.
func ObserveRun(res *pipeline.Result) {
	if res == nil {
		return
	}

	switch s := res.Summary.(type) {
	case pipeline.Summary:
		RunsTotal.WithLabelValues("success").Inc()
		observeClassifications(s.NewItems, s.ExactDuplicates, s.UpdatedItems)
		PixelSendsTotal.WithLabelValues("success").Add(float64(s.PixelSuccess))
		PixelSendsTotal.WithLabelValues("failed").Add(float64(s.PixelFailed))
	case pipeline.DryRunSummary:
		RunsTotal.WithLabelValues("dry_run").Inc()
		observeClassifications(s.NewItems, s.ExactDuplicates, s.UpdatedItems)
	default:
		RunsTotal.WithLabelValues("error").Inc()
	}

	RunDuration.Observe(float64(res.Execution.DurationMS) / 1000)
}

func observeClassifications(newItems, duplicates, updated int) {
	EventsTotal.WithLabelValues("new").Add(float64(newItems))
	EventsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	EventsTotal.WithLabelValues("updated").Add(float64(updated))
}
