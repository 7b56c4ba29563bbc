package rules

import (
	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/computations"
)

// DefaultRules returns the built-in rule set the report bundler
// registers for the counter families this repository ships. Thresholds
// are conservative starting points, not tuned for any particular fleet.
func DefaultRules() []Rule {
	return []Rule{
		KeyValueKeyExpectedRule{
			Key:           "os_name",
			ExpectedValue: "Linux",
			Score:         aperfdata.ScoreBad,
			Message:       "host is not reporting a Linux kernel",
		},
		KeyValueKeyRunComparisonRule{
			Key:     "kernel_release",
			Score:   -0.5,
			Message: "kernel_release differs from base run",
		},
		TimeSeriesDataPointThresholdRule{
			Metric:     "utilization_pct",
			Comparator: computations.Greater,
			Threshold:  95.0,
			Score:      aperfdata.ScoreBad,
			Message:    "CPU utilization exceeded 95%",
		},
		TimeSeriesStatRunComparisonRule{
			Metric:     "utilization_pct",
			Stat:       computations.Average,
			Comparator: computations.Greater,
			Abs:        false,
			DeltaRatio: 0.10,
			Score:      aperfdata.ScoreBad,
			Message:    "average CPU utilization regressed more than 10% vs base run",
		},
	}
}
