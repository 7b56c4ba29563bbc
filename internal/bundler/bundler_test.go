package bundler_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/internal/bundler"
	"github.com/aperf-project/aperf/internal/registry"
	"github.com/aperf-project/aperf/internal/rules"
)

// fakeNumaCollector is a minimal registry.Collector+Transformer that
// doesn't touch the real filesystem, used to exercise the bundler
// end-to-end without depending on /sys/devices/system/node.
type fakeNumaCollector struct{}

func (fakeNumaCollector) Name() string     { return "numa_stat" }
func (fakeNumaCollector) FileName() string { return "numa_stat" }
func (fakeNumaCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	ts := aperfdata.NewTimeSeries()
	times := make([]time.Time, len(raw))
	node0 := make([]float64, len(raw))
	node1 := make([]float64, len(raw))
	for i, r := range raw {
		times[i] = r.Time
		var payload struct {
			Node0 float64 `json:"node0"`
			Node1 float64 `json:"node1"`
		}
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, err
		}
		node0[i] = payload.Node0
		node1[i] = payload.Node1
	}
	td := make([]uint64, len(raw))
	for i := range td {
		td[i] = uint64(i)
	}
	metric := aperfdata.BuildMetric(map[string][]float64{
		"node0": aperfdata.CounterDeltas(node0),
		"node1": aperfdata.CounterDeltas(node1),
	}, td, nil)
	ts.Metrics["numa_hit"] = metric
	ts.SortedKeys = []string{"numa_hit"}
	return ts, nil
}

func writeFakeArchive(t *testing.T, root, runName string) string {
	t.Helper()
	params, err := archive.NewInitParams(runName, 1, 2)
	require.NoError(t, err)
	params.StartTime = time.Now()
	w, err := archive.NewWriter(root, params)
	require.NoError(t, err)
	require.NoError(t, w.WriteRunInfo())

	now := params.StartTime
	require.NoError(t, w.Append("numa_stat", now, map[string]float64{"node0": 1000, "node1": 800}))
	require.NoError(t, w.Append("numa_stat", now.Add(time.Second), map[string]float64{"node0": 1500, "node1": 1200}))
	require.NoError(t, w.Seal())
	return w.Dir()
}

func TestBundle_EndToEnd(t *testing.T) {
	root := t.TempDir()
	runDir := writeFakeArchive(t, root, "R")

	reg := registry.New()
	reg.Register(fakeNumaCollector{})

	outDir := filepath.Join(t.TempDir(), "OUT")
	result, err := bundler.Bundle(
		[]bundler.Source{{Dir: runDir}},
		reg,
		rules.DefaultRules(),
		"",
		outDir,
	)
	require.NoError(t, err)
	require.Contains(t, result.DataFamilies, "numa_stat")

	for _, name := range []string{"index.html", "index.css", "index.js", "plotly.min.js"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(outDir, "data", "numa_stat.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "data", "findings.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "data", "archive", "R", "run_info"))
	require.NoError(t, err)
	_, err = os.Stat(outDir + ".tar.gz")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(outDir, "data", "numa_stat.json"))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	var format string
	require.NoError(t, json.Unmarshal(raw["data_format"], &format))
	require.Equal(t, aperfdata.FormatTimeSeries, format)
}

func TestBundle_DuplicateStemsFatal(t *testing.T) {
	root := t.TempDir()
	dirA := writeFakeArchive(t, root, "dup")

	root2 := t.TempDir()
	os.MkdirAll(filepath.Join(root2, "dup"), 0o755)
	for _, name := range []string{"run_info"} {
		data, _ := os.ReadFile(filepath.Join(dirA, name))
		os.WriteFile(filepath.Join(root2, "dup", name), data, 0o644)
	}

	reg := registry.New()
	_, err := bundler.Bundle(
		[]bundler.Source{{Dir: dirA}, {Dir: filepath.Join(root2, "dup")}},
		reg,
		rules.DefaultRules(),
		"",
		filepath.Join(t.TempDir(), "OUT"),
	)
	require.Error(t, err)
}
