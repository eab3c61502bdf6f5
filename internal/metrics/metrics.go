package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeMatched labels alarms whose reduction key is referenced by the graph.
	OutcomeMatched = "matched"
	// OutcomeIgnored labels alarms for untracked reduction keys.
	OutcomeIgnored = "ignored"
	// OutcomeMalformed labels payloads that could not be parsed.
	OutcomeMalformed = "malformed"

	// OutcomeSuccess labels applied reloads.
	OutcomeSuccess = "success"
	// OutcomeError labels rejected or failed reloads.
	OutcomeError = "error"
)

var (
	alarmsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_bsm",
			Name:      "alarms_total",
			Help:      "Total number of alarms handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	alarmDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_bsm",
			Name:      "alarm_seconds",
			Help:      "Time spent applying one alarm to the graph.",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		},
	)

	stateChangesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_bsm",
			Name:      "state_changes_total",
			Help:      "Total number of business service status changes notified.",
		},
	)

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_bsm",
			Name:      "reloads_total",
			Help:      "Total number of definition reloads, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	propagationVertices = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_bsm",
			Name:      "propagation_vertices",
			Help:      "Number of ancestor vertices evaluated per alarm.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	businessServiceStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirador_bsm",
			Name:      "business_service_status",
			Help:      "Current operational status per business service (0 unknown .. 6 critical).",
		},
		[]string{"business_service"},
	)
)

// Register attaches mirador-bsm collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		alarmsTotal,
		alarmDurationSeconds,
		stateChangesTotal,
		reloadsTotal,
		propagationVertices,
		businessServiceStatus,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAlarm records the handling duration and outcome of one alarm.
func ObserveAlarm(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeMatched, OutcomeIgnored, OutcomeMalformed:
	default:
		outcome = OutcomeIgnored
	}
	alarmsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeMalformed {
		return
	}
	if duration < 0 {
		duration = 0
	}
	alarmDurationSeconds.Observe(duration.Seconds())
}

// ObservePropagation records how many ancestors one alarm caused to be evaluated.
func ObservePropagation(vertices int) {
	propagationVertices.Observe(float64(vertices))
}

// ObserveStateChange counts a notified change and updates the service gauge.
func ObserveStateChange(businessService string, status int) {
	stateChangesTotal.Inc()
	businessServiceStatus.WithLabelValues(businessService).Set(float64(status))
}

// ForgetBusinessService drops the gauge of a service that no longer exists.
func ForgetBusinessService(businessService string) {
	businessServiceStatus.DeleteLabelValues(businessService)
}

// ObserveReload records a definition reload outcome.
func ObserveReload(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	reloadsTotal.WithLabelValues(label).Inc()
}
