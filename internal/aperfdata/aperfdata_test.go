package aperfdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterDeltas(t *testing.T) {
	raw := []float64{1000, 1500, 1500, 2200}
	deltas := CounterDeltas(raw)
	require.Equal(t, []float64{0, 500, 0, 700}, deltas)
}

func TestBuildMetric_NumaAggregate(t *testing.T) {
	node0 := CounterDeltas([]float64{1000, 1500})
	node1 := CounterDeltas([]float64{800, 1200})

	metric := BuildMetric(map[string][]float64{
		"node0": node0,
		"node1": node1,
	}, []uint64{0, 1}, nil)

	require.Len(t, metric.Series, 3)

	var aggregate *Series
	named := map[string]*Series{}
	for _, s := range metric.Series {
		if s.IsAggregate {
			aggregate = s
			continue
		}
		named[*s.SeriesName] = s
	}
	require.NotNil(t, aggregate)

	assert.Equal(t, []float64{0, 500}, named["node0"].Values)
	assert.Equal(t, []float64{0, 400}, named["node1"].Values)
	assert.Equal(t, []float64{0, 450}, aggregate.Values)
	assert.Equal(t, aggregate.Values[1], metric.Stats.Max)
}

func TestTimeSeriesMetric_ExactlyOneAggregate(t *testing.T) {
	metric := BuildMetric(map[string][]float64{
		"cpu0": {1, 2, 3},
		"cpu1": {4, 5, 6},
	}, []uint64{0, 1, 2}, nil)

	count := 0
	for _, s := range metric.Series {
		if s.IsAggregate {
			count++
			assert.Nil(t, s.SeriesName)
		}
		assert.Equal(t, len(s.TimeDiff), len(s.Values))
	}
	assert.Equal(t, 1, count)
}

func TestKeyValue_UnnamedGroup(t *testing.T) {
	kv := NewKeyValue()
	kv.Unnamed().KeyValues["kernel.version"] = "6.1.0"
	assert.Equal(t, "6.1.0", kv.KeyValueGroups[""].KeyValues["kernel.version"])
}
