// Package metrics declares the Prometheus collectors exposed on /metrics/.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trainyard"

var (
	DatasetIngestedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "ingested_total",
		Help:      "Counter of the number of ingested datasets.",
	})

	DatasetDedupHitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "dedup_hits_total",
		Help:      "Counter of the number of ingested datasets whose content was already stored.",
	})

	ScriptSavedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "script",
		Name:      "saved_total",
		Help:      "Counter of the number of saved script versions.",
	})

	ScriptIntegrityFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "script",
		Name:      "integrity_failure_total",
		Help:      "Counter of the number of script decryptions that failed verification.",
	})

	JobCreatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "job",
		Name:      "created_total",
		Help:      "Counter of the number of created jobs.",
	}, []string{"origin"})

	JobStoppedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "job",
		Name:      "stopped_total",
		Help:      "Counter of the number of stopped jobs.",
	})

	JobFinishedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "job",
		Name:      "finished_total",
		Help:      "Counter of the number of jobs reported terminal by workers.",
	}, []string{"status"})

	JobDispatchFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "job",
		Name:      "dispatch_failure_total",
		Help:      "Counter of the number of jobs that could not be enqueued.",
	})

	RelayDeliveredCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "delivered_total",
		Help:      "Counter of the number of log messages delivered to subscribers.",
	})

	RelayDroppedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "dropped_total",
		Help:      "Counter of the number of log messages dropped for slow subscribers.",
	})

	RelaySubscriberGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "subscribers",
		Help:      "Gauge of the number of active log subscribers.",
	})

	RuntimeRegisteredCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "runtime",
		Name:      "registered_total",
		Help:      "Counter of the number of registered runtime images.",
	})
)
