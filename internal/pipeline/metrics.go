package pipeline

import (
	"strconv"
	"time"

	"github.com/MeKo-Tech/panostitch/internal/compositor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the figures of stitching runs in its own registry, so a
// run can be exported through the node exporter textfile collector.
type Metrics struct {
	Registry *prometheus.Registry

	pixelsWritten prometheus.Counter
	pixelsDropped *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
}

// NewMetrics creates the collectors in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		pixelsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "panostitch_pixels_written_total",
			Help: "Total number of canvas cells written",
		}),
		pixelsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panostitch_pixels_dropped_total",
				Help: "Total number of projected pixels outside the canvas",
			},
			[]string{"camera"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panostitch_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panostitch_runs_total",
				Help: "Total number of stitching runs",
			},
			[]string{"status"}, // status: success, error
		),
	}
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveComposite records the write statistics of a composite.
func (m *Metrics) ObserveComposite(stats compositor.Stats) {
	m.pixelsWritten.Add(float64(stats.Written))
	for cam, n := range stats.Dropped {
		m.pixelsDropped.WithLabelValues(strconv.Itoa(cam)).Add(float64(n))
	}
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
