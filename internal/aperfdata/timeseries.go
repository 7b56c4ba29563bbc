package aperfdata

import "github.com/aperf-project/aperf/internal/computations"

// NewSeries creates a named entity series (series_name set, is_aggregate
// false).
func NewSeries(name string) *Series {
	n := name
	return &Series{SeriesName: &n}
}

// NewAggregateSeries creates the single unnamed series a
// TimeSeriesMetric computes its Statistics from.
func NewAggregateSeries() *Series {
	return &Series{IsAggregate: true}
}

// BuildMetric assembles a TimeSeriesMetric from per-entity series plus
// their arithmetic-mean aggregate, computing Stats from the aggregate
// alone.
//
// entitySeries must all share the same tick count; timeDiff is the
// shared per-tick elapsed-time vector.
func BuildMetric(entitySeries map[string][]float64, timeDiff []uint64, metadata map[string]string) *TimeSeriesMetric {
	metric := &TimeSeriesMetric{Metadata: metadata}
	if metric.Metadata == nil {
		metric.Metadata = make(map[string]string)
	}

	names := make([]string, 0, len(entitySeries))
	for name := range entitySeries {
		names = append(names, name)
	}

	n := len(timeDiff)
	agg := make([]float64, n)
	for _, name := range names {
		values := entitySeries[name]
		s := NewSeries(name)
		s.TimeDiff = append([]uint64(nil), timeDiff...)
		s.Values = append([]float64(nil), values...)
		metric.Series = append(metric.Series, s)
		for i := 0; i < n && i < len(values); i++ {
			agg[i] += values[i]
		}
	}
	if len(names) > 0 {
		for i := range agg {
			agg[i] /= float64(len(names))
		}
	}

	aggregate := NewAggregateSeries()
	aggregate.TimeDiff = append([]uint64(nil), timeDiff...)
	aggregate.Values = agg
	metric.Series = append(metric.Series, aggregate)
	metric.Stats = computations.FromValues(agg)

	return metric
}

// BuildSingleMetric builds a TimeSeriesMetric for a counter family with
// no natural sub-entity. It produces exactly one series, flagged
// aggregate, with Stats computed from it.
func BuildSingleMetric(values []float64, timeDiff []uint64, metadata map[string]string) *TimeSeriesMetric {
	s := NewAggregateSeries()
	s.TimeDiff = append([]uint64(nil), timeDiff...)
	s.Values = append([]float64(nil), values...)
	return &TimeSeriesMetric{
		Series:   []*Series{s},
		Metadata: metadata,
		Stats:    computations.FromValues(values),
	}
}

// CounterDeltas converts a monotonic counter's raw readings into a
// delta series: value at t0 is 0.0, value at t_i (i>0) is
// raw[i]-raw[i-1] as a float64.
func CounterDeltas(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for i := 1; i < len(raw); i++ {
		out[i] = raw[i] - raw[i-1]
	}
	return out
}
