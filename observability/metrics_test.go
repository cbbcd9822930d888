package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry)

	// Counters start at zero and are registered on the custom registry.
	m.RequestsTotal.WithLabelValues(KindNamed, StatusOK).Inc()
	m.BuildsTotal.WithLabelValues(KindNamed, StatusOK).Add(2)
	m.ReusesTotal.Inc()
	m.ExecutionsTotal.WithLabelValues(StatusTimeout).Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues(KindNamed, StatusOK)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BuildsTotal.WithLabelValues(KindNamed, StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReusesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues(StatusTimeout)))
}

func TestTwoCollectorsAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ReusesTotal.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.ReusesTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.ReusesTotal))
}
