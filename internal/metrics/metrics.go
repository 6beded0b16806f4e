package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "racetime"

var (
	recordsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Count of time records stored, by submission kind.",
		},
		[]string{"kind"},
	)
	recordsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_duplicate_total",
			Help:      "Count of submissions answered from an existing idempotency key.",
		},
		[]string{"kind"},
	)
	submissionsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_failed_total",
			Help:      "Count of rejected record submissions, by error code.",
		},
		[]string{"code"},
	)
	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Count of competition lifecycle transitions, by resulting status.",
		},
		[]string{"status"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_judge_sessions",
			Help:      "Number of judge sessions currently connected.",
		},
	)
	rejectedHandshakes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_handshakes_total",
			Help:      "Count of judge connections closed during the handshake.",
		},
	)
)

var registerMetrics sync.Once

// Register all metrics with reg.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(recordsSaved)
		reg.MustRegister(recordsDuplicate)
		reg.MustRegister(submissionsFailed)
		reg.MustRegister(lifecycleTransitions)
		reg.MustRegister(activeSessions)
		reg.MustRegister(rejectedHandshakes)
	})
}

func RecordSaved(kind string) {
	recordsSaved.WithLabelValues(kind).Inc()
}

func RecordDuplicate(kind string) {
	recordsDuplicate.WithLabelValues(kind).Inc()
}

func RecordSubmissionFailed(code string) {
	submissionsFailed.WithLabelValues(code).Inc()
}

func RecordLifecycleTransition(status string) {
	lifecycleTransitions.WithLabelValues(status).Inc()
}

func SessionOpened() {
	activeSessions.Inc()
}

func SessionClosed() {
	activeSessions.Dec()
}

func RecordRejectedHandshake() {
	rejectedHandshakes.Inc()
}
