package rawdata

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

// timedPayload pairs a raw sample's collection time with its decoded,
// collector-specific payload, the typed counterpart to
// archive.RawSample's json.RawMessage.
type timedPayload[T any] struct {
	Time    time.Time
	Payload T
}

// decodeSamples decodes every raw sample's JSON payload into T,
// preserving archive order.
func decodeSamples[T any](raw []archive.RawSample) ([]timedPayload[T], error) {
	out := make([]timedPayload[T], len(raw))
	for i, r := range raw {
		var payload T
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, fmt.Errorf("rawdata: decode sample %d: %w", i, err)
		}
		out[i] = timedPayload[T]{Time: r.Time, Payload: payload}
	}
	return out, nil
}

// timeDiffFrom converts a tick's absolute timestamps into a Series
// time_diff vector: elapsed seconds since the first sample in the
// sequence.
func timeDiffFrom(times []time.Time) []uint64 {
	out := make([]uint64, len(times))
	if len(times) == 0 {
		return out
	}
	base := times[0]
	for i, t := range times {
		out[i] = uint64(t.Sub(base).Seconds())
	}
	return out
}

// counterMetric builds one TimeSeries metric from raw monotonic-counter
// readings per entity: each entity's raw reading sequence is converted
// to deltas via aperfdata.CounterDeltas, then aggregated by mean.
func counterMetric(rawPerEntity map[string][]float64, times []time.Time) *aperfdata.TimeSeriesMetric {
	deltas := make(map[string][]float64, len(rawPerEntity))
	for entity, raw := range rawPerEntity {
		deltas[entity] = aperfdata.CounterDeltas(raw)
	}
	return aperfdata.BuildMetric(deltas, timeDiffFrom(times), nil)
}

// gaugeMetric builds one TimeSeries metric from instantaneous (non-
// monotonic) readings per entity: no delta applied, values used as-is.
func gaugeMetric(rawPerEntity map[string][]float64, times []time.Time) *aperfdata.TimeSeriesMetric {
	return aperfdata.BuildMetric(rawPerEntity, timeDiffFrom(times), nil)
}

// singleCounterMetric builds a metric for a monotonic counter with no
// natural sub-entity (e.g. one vmstat field).
func singleCounterMetric(raw []float64, times []time.Time) *aperfdata.TimeSeriesMetric {
	return aperfdata.BuildSingleMetric(aperfdata.CounterDeltas(raw), timeDiffFrom(times), nil)
}

// singleGaugeMetric builds a metric for an instantaneous reading with
// no natural sub-entity (e.g. one meminfo field).
func singleGaugeMetric(raw []float64, times []time.Time) *aperfdata.TimeSeriesMetric {
	return aperfdata.BuildSingleMetric(raw, timeDiffFrom(times), nil)
}
