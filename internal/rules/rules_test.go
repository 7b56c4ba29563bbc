package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/computations"
	"github.com/aperf-project/aperf/internal/rules"
)

func kvWith(pairs map[string]string) *aperfdata.KeyValue {
	kv := aperfdata.NewKeyValue()
	for k, v := range pairs {
		kv.Unnamed().KeyValues[k] = v
	}
	return kv
}

func TestKeyValueKeyExpectedRule(t *testing.T) {
	rule := rules.KeyValueKeyExpectedRule{Key: "os_name", ExpectedValue: "Linux", Score: -1}

	t.Run("missing key triggers", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("run1", kvWith(map[string]string{}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(rules.Context{}, findings, data)
		require.Len(t, findings.PerRunFindings["run1"], 1)
	})

	t.Run("matching value, no finding", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("run1", kvWith(map[string]string{"os_name": "Linux"}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(rules.Context{}, findings, data)
		assert.Empty(t, findings.PerRunFindings["run1"])
	})

	t.Run("mismatched value triggers", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("run1", kvWith(map[string]string{"os_name": "BSD"}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(rules.Context{}, findings, data)
		require.Len(t, findings.PerRunFindings["run1"], 1)
	})
}

func TestKeyValueKeyRunComparisonRule(t *testing.T) {
	rule := rules.KeyValueKeyRunComparisonRule{Key: "kernel_release", Score: -0.5}
	ctx := rules.Context{BaseRun: "base"}

	t.Run("key missing in base, no findings anywhere", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("base", kvWith(map[string]string{}))
		data.Put("other", kvWith(map[string]string{"kernel_release": "6.1"}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		assert.Empty(t, findings.PerRunFindings)
	})

	t.Run("key missing in non-base but present in base triggers", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("base", kvWith(map[string]string{"kernel_release": "6.1"}))
		data.Put("other", kvWith(map[string]string{}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		require.Len(t, findings.PerRunFindings["other"], 1)
		assert.Empty(t, findings.PerRunFindings["base"])
	})

	t.Run("values differ triggers only non-base run", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("base", kvWith(map[string]string{"kernel_release": "6.1"}))
		data.Put("other", kvWith(map[string]string{"kernel_release": "6.2"}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		require.Len(t, findings.PerRunFindings["other"], 1)
		assert.Empty(t, findings.PerRunFindings["base"])
	})

	t.Run("values equal, no finding", func(t *testing.T) {
		data := aperfdata.NewProcessedData("system_info")
		data.Put("base", kvWith(map[string]string{"kernel_release": "6.1"}))
		data.Put("other", kvWith(map[string]string{"kernel_release": "6.1"}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		assert.Empty(t, findings.PerRunFindings["other"])
	})
}

func metricWithAggregate(values []float64) *aperfdata.TimeSeriesMetric {
	td := make([]uint64, len(values))
	return aperfdata.BuildSingleMetric(values, td, nil)
}

func tsWith(metricName string, values []float64) *aperfdata.TimeSeries {
	ts := aperfdata.NewTimeSeries()
	ts.Metrics[metricName] = metricWithAggregate(values)
	ts.SortedKeys = []string{metricName}
	return ts
}

func TestTimeSeriesDataPointThresholdRule(t *testing.T) {
	rule := rules.TimeSeriesDataPointThresholdRule{
		Metric: "utilization_pct", Comparator: computations.Greater, Threshold: 50, Score: -1,
	}

	t.Run("no point exceeds threshold, no finding", func(t *testing.T) {
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("run1", tsWith("utilization_pct", []float64{10, 20, 30}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(rules.Context{}, findings, data)
		assert.Empty(t, findings.PerRunFindings["run1"])
	})

	t.Run("one point exceeds threshold, exactly one finding", func(t *testing.T) {
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("run1", tsWith("utilization_pct", []float64{60, 70, 80}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(rules.Context{}, findings, data)
		require.Len(t, findings.PerRunFindings["run1"], 1)
	})

	t.Run("metric absent, no finding", func(t *testing.T) {
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("run1", tsWith("other_metric", []float64{60, 70, 80}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(rules.Context{}, findings, data)
		assert.Empty(t, findings.PerRunFindings["run1"])
	})
}

func TestTimeSeriesStatRunComparisonRule(t *testing.T) {
	ctx := rules.Context{BaseRun: "base"}

	t.Run("base avg 100, other avg 150, ratio_delta>0.1 triggers non-base only", func(t *testing.T) {
		rule := rules.TimeSeriesStatRunComparisonRule{
			Metric: "utilization_pct", Stat: computations.Average,
			Comparator: computations.Greater, DeltaRatio: 0.1, Score: -1,
		}
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("base", tsWith("utilization_pct", []float64{100, 100}))
		data.Put("other", tsWith("utilization_pct", []float64{150, 150}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		require.Len(t, findings.PerRunFindings["other"], 1)
		assert.Empty(t, findings.PerRunFindings["base"])
	})

	t.Run("metric absent in base, no finding", func(t *testing.T) {
		rule := rules.TimeSeriesStatRunComparisonRule{
			Metric: "missing_metric", Stat: computations.Average,
			Comparator: computations.Greater, DeltaRatio: 0.1, Score: -1,
		}
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("base", tsWith("utilization_pct", []float64{100}))
		data.Put("other", tsWith("utilization_pct", []float64{150}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		assert.Empty(t, findings.PerRunFindings)
	})

	t.Run("base stat zero, delta treated as raw other stat", func(t *testing.T) {
		rule := rules.TimeSeriesStatRunComparisonRule{
			Metric: "utilization_pct", Stat: computations.Average,
			Comparator: computations.Greater, DeltaRatio: 5, Score: -1,
		}
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("base", tsWith("utilization_pct", []float64{0, 0}))
		data.Put("other", tsWith("utilization_pct", []float64{10, 10}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		require.Len(t, findings.PerRunFindings["other"], 1)
	})

	t.Run("abs=true uses absolute value of delta", func(t *testing.T) {
		rule := rules.TimeSeriesStatRunComparisonRule{
			Metric: "utilization_pct", Stat: computations.Average,
			Comparator: computations.Greater, Abs: true, DeltaRatio: 0.1, Score: -1,
		}
		data := aperfdata.NewProcessedData("cpu_utilization")
		data.Put("base", tsWith("utilization_pct", []float64{100, 100}))
		data.Put("other", tsWith("utilization_pct", []float64{50, 50}))
		findings := aperfdata.NewDataFindings()
		rule.Analyze(ctx, findings, data)
		require.Len(t, findings.PerRunFindings["other"], 1)
	})
}

func TestEvaluateAccumulatesAcrossRules(t *testing.T) {
	data := aperfdata.NewProcessedData("system_info")
	data.Put("run1", kvWith(map[string]string{}))
	findings := rules.Evaluate(rules.Context{BaseRun: "run1"}, rules.DefaultRules(), data)
	assert.NotEmpty(t, findings.PerRunFindings["run1"])
}
