package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CallMetrics counts the core lead-distribution and disposition activity.
type CallMetrics struct {
	claimsServed         *prometheus.CounterVec
	leadsClaimed         prometheus.Counter
	dispositionsRecorded *prometheus.CounterVec
	duplicatesRejected   prometheus.Counter
	counterClamps        prometheus.Counter
}

var (
	callMetricsOnce sync.Once
	callMetrics     *CallMetrics
)

// Call returns the process-wide call metrics, registering them on first use.
func Call(cfg Config) *CallMetrics {
	callMetricsOnce.Do(func() {
		callMetrics = newCallMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return callMetrics
}

// ResetCallMetricsForTest clears the singleton between test registries.
func ResetCallMetricsForTest() {
	callMetricsOnce = sync.Once{}
	callMetrics = nil
}

func newCallMetrics(registerer prometheus.Registerer, cfg Config) *CallMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "callup"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	claimsServed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "callup_claims_served_total",
			Help:        "Claim requests served, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // ok | empty | error
	)

	leadsClaimed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "callup_leads_claimed_total",
			Help:        "Leads handed out across all claim responses.",
			ConstLabels: constLabels,
		},
	)

	dispositionsRecorded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "callup_dispositions_recorded_total",
			Help:        "Dispositions recorded, by result category.",
			ConstLabels: constLabels,
		},
		[]string{"category"},
	)

	duplicatesRejected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "callup_duplicate_dispositions_total",
			Help:        "Disposition submissions rejected as duplicates.",
			ConstLabels: constLabels,
		},
	)

	counterClamps := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "callup_pool_counter_clamps_total",
			Help:        "Pool unused_count decrements skipped by the non-negative guard.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		claimsServed,
		leadsClaimed,
		dispositionsRecorded,
		duplicatesRejected,
		counterClamps,
	)

	return &CallMetrics{
		claimsServed:         claimsServed,
		leadsClaimed:         leadsClaimed,
		dispositionsRecorded: dispositionsRecorded,
		duplicatesRejected:   duplicatesRejected,
		counterClamps:        counterClamps,
	}
}

func (m *CallMetrics) IncClaim(outcome string, leads int) {
	if m == nil {
		return
	}
	m.claimsServed.WithLabelValues(outcome).Inc()
	if leads > 0 {
		m.leadsClaimed.Add(float64(leads))
	}
}

func (m *CallMetrics) IncDisposition(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "none"
	}
	m.dispositionsRecorded.WithLabelValues(category).Inc()
}

func (m *CallMetrics) IncDuplicateRejected() {
	if m == nil {
		return
	}
	m.duplicatesRejected.Inc()
}

func (m *CallMetrics) IncCounterClamp() {
	if m == nil {
		return
	}
	m.counterClamps.Inc()
}
