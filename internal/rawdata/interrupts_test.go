package rawdata

import (
	"testing"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/stretchr/testify/require"
)

func TestInterruptsCollector_Transform_SingleSeriesPerIRQ(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []archive.RawSample{
		rawSample(t, t0, InterruptsRawSample{IRQs: map[string]uint64{"16": 100}}),
		rawSample(t, t0.Add(time.Second), InterruptsRawSample{IRQs: map[string]uint64{"16": 140}}),
	}

	c := NewInterruptsCollector()
	data, err := c.Transform(samples)
	require.NoError(t, err)

	ts := data.(*aperfdata.TimeSeries)
	metric := ts.Metrics["16"]
	require.Len(t, metric.Series, 1)
	require.True(t, metric.Series[0].IsAggregate)
	require.Equal(t, []float64{0, 40}, metric.Series[0].Values)
}
