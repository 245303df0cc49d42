package metrics_test

import (
	"errors"
	"testing"

	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.RateLimitedTotal.Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200").Inc()
	m.Upstream("stripe", nil)
	m.Upstream("stripe", errors.New("boom"))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "contrastkit_rate_limited_total")
	assert.Contains(t, names, "contrastkit_http_requests_total")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("stripe", "error")))
}

func TestNewMetrics_TwoRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.NewMetrics(prometheus.NewRegistry())
		metrics.NewMetrics(prometheus.NewRegistry())
		metrics.NewMetrics(nil)
	})

	var m *metrics.Metrics
	assert.NotPanics(t, func() { m.Upstream("webflow", nil) })
}

func TestRegisterSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	metrics.RegisterSize(reg, "kv_memory_keys", "Keys held by the memory store.", func() int { return n })

	value := func() float64 {
		families, err := reg.Gather()
		require.NoError(t, err)
		require.Len(t, families, 1)
		assert.Equal(t, "contrastkit_kv_memory_keys", families[0].GetName())
		return families[0].GetMetric()[0].GetGauge().GetValue()
	}

	assert.Equal(t, 3.0, value())
	n = 5
	assert.Equal(t, 5.0, value())
}
