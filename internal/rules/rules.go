// Package rules is the analytics engine: it evaluates rules against a
// ProcessedData value, producing DataFindings.
package rules

import (
	"fmt"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/computations"
)

// Context carries the evaluation-time configuration a rule needs
// beyond the ProcessedData itself. An explicit value threaded into
// Analyze, not a process-wide global, so concurrent evaluations of
// different ProcessedData values never race on shared state.
type Context struct {
	// BaseRun is the reference run; rules that compare across runs
	// skip the base run itself.
	BaseRun string
}

// Rule is any object that can analyze a ProcessedData and record
// findings into the shared DataFindings. Rules never error: absent
// data means "no finding" unless a rule explicitly defines absence as
// a trigger.
type Rule interface {
	Analyze(ctx Context, findings *aperfdata.DataFindings, data *aperfdata.ProcessedData)
}

// KeyValueKeyExpectedRule checks that every run's unnamed key/value
// group has Key set to ExpectedValue. A missing key triggers: the rule
// fails closed.
type KeyValueKeyExpectedRule struct {
	Key           string
	ExpectedValue string
	Score         float64
	Message       string
}

func (r KeyValueKeyExpectedRule) Analyze(_ Context, findings *aperfdata.DataFindings, data *aperfdata.ProcessedData) {
	for run, d := range data.Runs {
		kv, ok := d.(*aperfdata.KeyValue)
		if !ok {
			continue
		}
		group := kv.Unnamed()
		value, present := group.KeyValues[r.Key]
		if !present || value != r.ExpectedValue {
			findings.Add(run, aperfdata.Finding{
				Rule:    r.ruleName(),
				Message: r.message(present, value),
				Score:   r.Score,
			})
		}
	}
}

func (r KeyValueKeyExpectedRule) ruleName() string { return "key_value_key_expected" }

func (r KeyValueKeyExpectedRule) message(present bool, got string) string {
	if r.Message != "" {
		return r.Message
	}
	if !present {
		return fmt.Sprintf("%s is missing, expected %q", r.Key, r.ExpectedValue)
	}
	return fmt.Sprintf("%s is %q, expected %q", r.Key, got, r.ExpectedValue)
}

// KeyValueKeyRunComparisonRule compares a key's value in every
// non-base run against the base run's value for the same key. If the
// key is missing in the base run, the rule is skipped silently for
// every run; missing only in a non-base run counts as different.
type KeyValueKeyRunComparisonRule struct {
	Key     string
	Score   float64
	Message string
}

func (r KeyValueKeyRunComparisonRule) Analyze(ctx Context, findings *aperfdata.DataFindings, data *aperfdata.ProcessedData) {
	baseData, ok := data.Runs[ctx.BaseRun]
	if !ok {
		return
	}
	baseKV, ok := baseData.(*aperfdata.KeyValue)
	if !ok {
		return
	}
	baseValue, present := baseKV.Unnamed().KeyValues[r.Key]
	if !present {
		return
	}

	for run, d := range data.Runs {
		if run == ctx.BaseRun {
			continue
		}
		kv, ok := d.(*aperfdata.KeyValue)
		if !ok {
			continue
		}
		otherValue, present := kv.Unnamed().KeyValues[r.Key]
		if !present || otherValue != baseValue {
			findings.Add(run, aperfdata.Finding{
				Rule:    "key_value_key_run_comparison",
				Message: r.message(baseValue, otherValue, present),
				Score:   r.Score,
			})
		}
	}
}

func (r KeyValueKeyRunComparisonRule) message(base, other string, present bool) string {
	if r.Message != "" {
		return r.Message
	}
	if !present {
		return fmt.Sprintf("%s is missing, base run has %q", r.Key, base)
	}
	return fmt.Sprintf("%s differs from base: %q vs %q", r.Key, other, base)
}

// TimeSeriesDataPointThresholdRule fires at most once per run when any
// point in the metric's aggregate series satisfies Comparator(v,
// Threshold). A metric absent from a run is skipped for that run, not
// a finding.
type TimeSeriesDataPointThresholdRule struct {
	Metric     string
	Comparator computations.Comparator
	Threshold  float64
	Score      float64
	Message    string
}

func (r TimeSeriesDataPointThresholdRule) Analyze(_ Context, findings *aperfdata.DataFindings, data *aperfdata.ProcessedData) {
	for run, d := range data.Runs {
		ts, ok := d.(*aperfdata.TimeSeries)
		if !ok {
			continue
		}
		metric, ok := ts.Metrics[r.Metric]
		if !ok {
			continue
		}
		agg := aggregateSeries(metric)
		if agg == nil {
			continue
		}
		for _, v := range agg.Values {
			if r.Comparator.Compare(v, r.Threshold) {
				findings.Add(run, aperfdata.Finding{
					Rule:    "time_series_data_point_threshold",
					Message: r.message(v),
					Score:   r.Score,
				})
				break
			}
		}
	}
}

func (r TimeSeriesDataPointThresholdRule) message(v float64) string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("%s has a value %s %.2f (observed %.2f)", r.Metric, r.Comparator, r.Threshold, v)
}

// TimeSeriesStatRunComparisonRule compares one Stat of a metric's
// aggregate statistics between each non-base run and the base run. If
// the metric is absent in the base run, the rule is skipped for every
// run. A base stat of zero makes the other run's stat the delta
// directly, so a zero baseline never divides.
type TimeSeriesStatRunComparisonRule struct {
	Metric     string
	Stat       computations.Stat
	Comparator computations.Comparator
	Abs        bool
	DeltaRatio float64
	Score      float64
	Message    string
}

func (r TimeSeriesStatRunComparisonRule) Analyze(ctx Context, findings *aperfdata.DataFindings, data *aperfdata.ProcessedData) {
	baseData, ok := data.Runs[ctx.BaseRun]
	if !ok {
		return
	}
	baseTS, ok := baseData.(*aperfdata.TimeSeries)
	if !ok {
		return
	}
	baseMetric, ok := baseTS.Metrics[r.Metric]
	if !ok {
		return
	}
	b := r.Stat.Get(baseMetric.Stats)

	for run, d := range data.Runs {
		if run == ctx.BaseRun {
			continue
		}
		ts, ok := d.(*aperfdata.TimeSeries)
		if !ok {
			continue
		}
		metric, ok := ts.Metrics[r.Metric]
		if !ok {
			continue
		}
		x := r.Stat.Get(metric.Stats)

		var delta float64
		if b == 0 {
			delta = x
		} else {
			delta = (x - b) / b
		}
		if r.Abs && delta < 0 {
			delta = -delta
		}
		if r.Comparator.Compare(delta, r.DeltaRatio) {
			findings.Add(run, aperfdata.Finding{
				Rule:    "time_series_stat_run_comparison",
				Message: r.message(delta),
				Score:   r.Score,
			})
		}
	}
}

func (r TimeSeriesStatRunComparisonRule) message(delta float64) string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("%s %s changed %s vs base run", r.Metric, r.Stat, computations.RatioToPercentageDeltaString(delta))
}

// aggregateSeries returns the one Series flagged IsAggregate, or nil
// if metric has none.
func aggregateSeries(metric *aperfdata.TimeSeriesMetric) *aperfdata.Series {
	for _, s := range metric.Series {
		if s.IsAggregate {
			return s
		}
	}
	return nil
}

// Evaluate runs every rule over data, returning the accumulated
// findings.
func Evaluate(ctx Context, rules []Rule, data *aperfdata.ProcessedData) *aperfdata.DataFindings {
	findings := aperfdata.NewDataFindings()
	for _, rule := range rules {
		rule.Analyze(ctx, findings, data)
	}
	return findings
}
