package promadapter_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libropolis/lending-library-go/promadapter"
)

func Test_IncrementCounter_RegistersAndCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := promadapter.NewCollector(registry)

	collector.IncrementCounter("lending_test_total", map[string]string{"operation": "save"})
	collector.IncrementCounter("lending_test_total", map[string]string{"operation": "save"})

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "lending_test_total", families[0].GetName())
	assert.Equal(t, float64(2), families[0].GetMetric()[0].GetCounter().GetValue())
}

func Test_RecordDuration_ObservesSeconds(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := promadapter.NewCollector(registry)

	collector.RecordDuration("lending_test_duration_seconds", 250*time.Millisecond, nil)

	count := testutil.CollectAndCount(registry, "lending_test_duration_seconds")
	assert.Equal(t, 1, count)
}

func Test_RecordValue_SetsGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := promadapter.NewCollector(registry)

	collector.RecordValue("lending_test_open_loans", 7, nil)
	collector.RecordValue("lending_test_open_loans", 3, nil)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, float64(3), families[0].GetMetric()[0].GetGauge().GetValue())
}
