package rawdata

import (
	"testing"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/stretchr/testify/require"
)

func TestCPUCollector_Transform_FirstTickIsZero(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []archive.RawSample{
		rawSample(t, t0, CPURawSample{Cores: map[string]cpuJiffies{
			"cpu0": {User: 100, Idle: 900},
		}}),
		rawSample(t, t0.Add(time.Second), CPURawSample{Cores: map[string]cpuJiffies{
			"cpu0": {User: 150, Idle: 950},
		}}),
	}

	c := NewCPUCollector()
	data, err := c.Transform(samples)
	require.NoError(t, err)

	ts := data.(*aperfdata.TimeSeries)
	metric := ts.Metrics["utilization_pct"]
	require.Len(t, metric.Series, 2) // one named "cpu0" + one aggregate

	var named *aperfdata.Series
	for _, s := range metric.Series {
		if !s.IsAggregate {
			named = s
		}
	}
	require.NotNil(t, named)
	require.Equal(t, 0.0, named.Values[0])
	// delta active = 50, delta total = 100 => 50%
	require.InDelta(t, 50.0, named.Values[1], 1e-9)
}

func TestCPUCollector_Transform_Empty(t *testing.T) {
	c := NewCPUCollector()
	data, err := c.Transform(nil)
	require.NoError(t, err)
	require.Empty(t, data.(*aperfdata.TimeSeries).Metrics)
}
