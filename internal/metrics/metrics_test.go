package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IntentClassified("chat", "cancel_order")
	m.IntentClassified("chat", "cancel_order")
	m.ActionPerformed("order_cancelled")
	m.ClassifierFailed("timeout")
	m.EscalationFinished("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Intents.WithLabelValues("chat", "cancel_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Actions.WithLabelValues("order_cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Escalations.WithLabelValues("ok")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IntentClassified("call", "unknown")
		m.ActionPerformed("none")
		m.ClassifierFailed("malformed")
		m.EscalationFinished("dropped")
	})
}
