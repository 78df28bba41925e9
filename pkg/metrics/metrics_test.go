package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RegistersCollectors(t *testing.T) {
	r, reg := NewIsolated()

	r.QueuePuts.WithLabelValues("q").Inc()
	r.QueueDepth.WithLabelValues("q").Set(3)
	r.TaskDuration.WithLabelValues("p").Observe(0.25)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["goworkq_queue_puts_total"])
	assert.True(t, names["goworkq_queue_depth"])
	assert.True(t, names["goworkq_pool_task_duration_seconds"])

	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueuePuts.WithLabelValues("q")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.QueueDepth.WithLabelValues("q")))
}

func TestNewRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRegistry(reg)

	assert.Panics(t, func() {
		NewRegistry(reg)
	})
}

func TestNewRegistry_NilRegisterer(t *testing.T) {
	r := NewRegistry(nil)

	assert.NotPanics(t, func() {
		r.TasksSubmitted.WithLabelValues("p").Inc()
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TasksSubmitted.WithLabelValues("p")))
}
