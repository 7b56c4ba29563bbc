package rawdata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/stretchr/testify/require"
)

func rawSample(t *testing.T, at time.Time, payload any) archive.RawSample {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return archive.RawSample{Time: at, Payload: b}
}

// Two-node delta fixture: numa_hit deltas [0,500] and [0,400],
// aggregate [0,450].
func TestNumaStatCollector_Transform_Scenario3(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []archive.RawSample{
		rawSample(t, t0, NumaRawSample{Nodes: map[string]map[string]uint64{
			"node0": {"numa_hit": 1000},
			"node1": {"numa_hit": 800},
		}}),
		rawSample(t, t0.Add(time.Second), NumaRawSample{Nodes: map[string]map[string]uint64{
			"node0": {"numa_hit": 1500},
			"node1": {"numa_hit": 1200},
		}}),
	}

	c := NewNumaStatCollector()
	data, err := c.Transform(samples)
	require.NoError(t, err)

	ts, ok := data.(*aperfdata.TimeSeries)
	require.True(t, ok)
	metric, ok := ts.Metrics["numa_hit"]
	require.True(t, ok)
	require.Len(t, metric.Series, 3)

	var aggregate *aperfdata.Series
	named := map[string]*aperfdata.Series{}
	for _, s := range metric.Series {
		if s.IsAggregate {
			aggregate = s
			continue
		}
		named[*s.SeriesName] = s
	}
	require.NotNil(t, aggregate)
	require.Equal(t, []float64{0, 500}, named["node0"].Values)
	require.Equal(t, []float64{0, 400}, named["node1"].Values)
	require.Equal(t, []float64{0, 450}, aggregate.Values)
}

func TestNumaStatCollector_Transform_Empty(t *testing.T) {
	c := NewNumaStatCollector()
	data, err := c.Transform(nil)
	require.NoError(t, err)
	ts, ok := data.(*aperfdata.TimeSeries)
	require.True(t, ok)
	require.Empty(t, ts.Metrics)
}
