package tandem

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the namespace of all the collectors.
const MetricsNamespace = "tandem"

var (
	masterSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "master",
		Name:      "steps_total",
		Help:      "Number of completed master steps",
	})
	masterStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "master",
		Name:      "step_failures_total",
		Help:      "Number of failed master steps",
	}, []string{"reason"})
	barrierWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "master",
		Name:      "barrier_wait_seconds",
		Help:      "Time spent waiting for a slave to complete its step",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	hardEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "master",
		Name:      "hard_events_total",
		Help:      "Number of hard events reported by slaves",
	})
	slaveSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "slave",
		Name:      "steps_total",
		Help:      "Number of steps completed by the slave",
	})
	handshakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "handshakes_total",
		Help:      "Number of handshakes by role and result",
	}, []string{"role", "result"})
)

func reportStepFailure(reason string) {
	masterStepFailures.WithLabelValues(reason).Inc()
}

func reportHandshake(role string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	handshakes.WithLabelValues(role, result).Inc()
}
