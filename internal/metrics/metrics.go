// Package metrics records batch progress as Prometheus metrics. A batch is short-lived,
// so the metrics are written to a file for the node exporter textfile collector
// instead of being served.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Recorder counts zoomed videos and how long each one took
type Recorder struct {
	registry *prometheus.Registry

	filesTotal   *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	lastRun      prometheus.Gauge

	started map[string]time.Time
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "video_zoom_files_total",
			Help: "Total number of videos processed, by status",
		}, []string{"status"}),
		fileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "video_zoom_file_duration_seconds",
			Help:    "Time spent zooming a single video",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "video_zoom_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished",
		}),
		started: make(map[string]time.Time),
	}
}

func (r *Recorder) Started(name string) {
	r.started[name] = time.Now()
}

func (r *Recorder) Saved(name, outputPath string) {
	r.finish(name, StatusSucceeded)
}

func (r *Recorder) Failed(name string, err error) {
	r.finish(name, StatusFailed)
}

func (r *Recorder) finish(name, status string) {
	r.filesTotal.WithLabelValues(status).Inc()
	if start, ok := r.started[name]; ok {
		r.fileDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		delete(r.started, name)
	}
}

// WriteFile stamps the run time and writes every metric to path in the text format.
func (r *Recorder) WriteFile(path string) error {
	r.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
