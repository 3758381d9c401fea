// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the core's prometheus instrumentation: verdict
// collector queue depth, aggregator confidence distribution, and fraud
// window outcome counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the engine's full instrumentation set.
type Metrics struct {
	CollectorQueueDepth   prometheus.Gauge
	Confidence            Averager
	FraudWindowOpened     prometheus.Counter
	FraudWindowOverturned prometheus.Counter
	FraudWindowCommitted  prometheus.Counter
}

// New registers every engine metric under reg, prefixed "popc_". A nil
// reg yields an unexported Metrics, for tests: its Confidence averager
// still accumulates, but the gauge and the counters are left nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	confidence, err := NewAverager("popc_decision_confidence", "aggregator decision confidence", reg)
	if err != nil {
		return nil, err
	}
	m := &Metrics{Confidence: confidence}
	if reg == nil {
		return m, nil
	}

	m.CollectorQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "popc_verdict_collector_queue_depth",
		Help: "Number of admitted verdicts awaiting seal across all open challenges.",
	})
	m.FraudWindowOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popc_fraud_window_opened_total",
		Help: "Total number of decisions that entered a fraud window.",
	})
	m.FraudWindowOverturned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popc_fraud_window_overturned_total",
		Help: "Total number of fraud windows overturned by a valid fraud proof.",
	})
	m.FraudWindowCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popc_fraud_window_committed_total",
		Help: "Total number of fraud windows committed without a successful fraud proof.",
	})

	for _, c := range []prometheus.Collector{
		m.CollectorQueueDepth,
		m.FraudWindowOpened,
		m.FraudWindowOverturned,
		m.FraudWindowCommitted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
