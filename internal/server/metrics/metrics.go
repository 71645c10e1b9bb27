package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// Video operations: ingest, trim, merge
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reel",
			Name:      "video_operations_total",
			Help:      "Total video operations by kind and outcome",
		},
		[]string{"operation", "format", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reel",
			Name:      "video_operation_duration_seconds",
			Help:      "Wall time spent in video operations",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"operation"},
	)

	BytesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reel",
			Name:      "video_bytes_written_total",
			Help:      "Bytes persisted for new videos",
		},
		[]string{"operation"},
	)

	// External ffmpeg/ffprobe runs: probe, trim, concat
	TranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reel",
			Name:      "transcode_runs_total",
			Help:      "ffmpeg and ffprobe invocations by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reel",
			Name:      "transcode_duration_seconds",
			Help:      "Wall time of ffmpeg and ffprobe runs, including time queued for a slot",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"operation"},
	)

	ShareLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reel",
			Name:      "share_links_total",
			Help:      "Share link creations and resolutions by outcome",
		},
		[]string{"action", "status"},
	)

	TokenCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reel",
			Name:      "share_token_collisions_total",
			Help:      "Share tokens rejected by the unique constraint",
		},
	)

	OrphansRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reel",
			Name:      "storage_orphans_removed_total",
			Help:      "Stored objects deleted because no video references them",
		},
	)
)

// RecordOperation records the outcome and latency of a video operation.
func RecordOperation(operation, format string, err error, elapsed time.Duration) {
	OperationsTotal.WithLabelValues(operation, format, status(err)).Inc()
	OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func RecordTranscode(operation string, err error, elapsed time.Duration) {
	TranscodesTotal.WithLabelValues(operation, status(err)).Inc()
	TranscodeDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func RecordBytesWritten(operation string, n int64) {
	BytesWrittenTotal.WithLabelValues(operation).Add(float64(n))
}

func RecordShare(action string, err error) {
	ShareLinksTotal.WithLabelValues(action, status(err)).Inc()
}

func RecordTokenCollision() {
	TokenCollisionsTotal.Inc()
}

func RecordOrphansRemoved(n int) {
	OrphansRemovedTotal.Add(float64(n))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
