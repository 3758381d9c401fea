// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(err)
	require.NotNil(m.CollectorQueueDepth)
	require.NotNil(m.FraudWindowOpened)

	m.Confidence.Observe(0.95)
	m.Confidence.Observe(0.99)
	require.InDelta(0.97, m.Confidence.Read(), 1e-9)
}

func TestFraudWindowCountersExportedAsPrometheusFamilies(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(err)

	m.FraudWindowOpened.Inc()
	m.FraudWindowOpened.Inc()
	m.FraudWindowOverturned.Inc()

	families, err := reg.Gather()
	require.NoError(err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	opened, ok := byName["popc_fraud_window_opened_total"]
	require.True(ok)
	require.Equal(dto.MetricType_COUNTER, opened.GetType())
	require.Equal(2.0, opened.GetMetric()[0].GetCounter().GetValue())

	overturned, ok := byName["popc_fraud_window_overturned_total"]
	require.True(ok)
	require.Equal(1.0, overturned.GetMetric()[0].GetCounter().GetValue())
}

func TestNewWithNilRegistererStillAccumulates(t *testing.T) {
	require := require.New(t)
	m, err := New(nil)
	require.NoError(err)
	require.Nil(m.CollectorQueueDepth)

	m.Confidence.Observe(1.0)
	require.Equal(1.0, m.Confidence.Read())
}
