package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowguard"

// PipelineMetrics holds all Prometheus metrics for the detection pipeline.
type PipelineMetrics struct {
	LinesTotal          prometheus.Counter
	RecordsTotal        *prometheus.CounterVec
	PredictionsTotal    *prometheus.CounterVec
	StageErrorsTotal    *prometheus.CounterVec
	AlertsTotal         prometheus.Counter
	NotificationsTotal  *prometheus.CounterVec
	HashFallbackTotal   *prometheus.CounterVec
	WatcherRotations    prometheus.Counter
	DedupEntries        prometheus.Gauge
	ProcessResidentSize prometheus.Gauge
}

// NewPipelineMetrics initializes the metrics and registers them with reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	f := promauto.With(reg)
	return &PipelineMetrics{
		LinesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "lines_total",
			Help:      "Total number of record lines read from the connection log.",
		}),
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Total number of records by outcome.",
		}, []string{"outcome"}), // outcome: parsed, malformed, duplicate
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "predictions_total",
			Help:      "Total number of successful predictions by verdict.",
		}, []string{"verdict"}), // verdict: malicious, benign
		StageErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_errors_total",
			Help:      "Total number of recovered per-record errors by stage.",
		}, []string{"stage"}),
		AlertsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "written_total",
			Help:      "Total number of alerts appended to the alert log.",
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "notifications_total",
			Help:      "Total number of operator notifications by status.",
		}, []string{"status"}), // status: sent, failed, rate_limited
		HashFallbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "hash_fallback_total",
			Help:      "Total number of categorical values encoded by hash because no encoder exists.",
		}, []string{"feature"}),
		WatcherRotations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "rotations_total",
			Help:      "Total number of detected log replacements or truncations.",
		}),
		DedupEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "entries",
			Help:      "Number of connection identifiers remembered by the deduplicator.",
		}),
		ProcessResidentSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "resident_memory_bytes",
			Help:      "Resident set size of the flowguard process.",
		}),
	}
}
