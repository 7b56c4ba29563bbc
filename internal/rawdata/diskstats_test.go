package rawdata

import (
	"testing"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/stretchr/testify/require"
)

func TestDiskstatsCollector_Transform_PerDeviceAggregate(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []archive.RawSample{
		rawSample(t, t0, DiskstatsRawSample{Devices: map[string]map[string]uint64{
			"sda": {"reads_completed": 10},
			"sdb": {"reads_completed": 20},
		}}),
		rawSample(t, t0.Add(time.Second), DiskstatsRawSample{Devices: map[string]map[string]uint64{
			"sda": {"reads_completed": 30},
			"sdb": {"reads_completed": 60},
		}}),
	}

	c := NewDiskstatsCollector()
	data, err := c.Transform(samples)
	require.NoError(t, err)

	ts := data.(*aperfdata.TimeSeries)
	metric := ts.Metrics["reads_completed"]
	require.Len(t, metric.Series, 3)

	var aggregate *aperfdata.Series
	for _, s := range metric.Series {
		if s.IsAggregate {
			aggregate = s
		}
	}
	require.NotNil(t, aggregate)
	require.Equal(t, []float64{0, 30}, aggregate.Values) // mean of (20,40)
}
