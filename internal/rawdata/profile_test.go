package rawdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/stretchr/testify/require"
)

func newProfileWriter(t *testing.T) *archive.Writer {
	t.Helper()
	params, err := archive.NewInitParams("profile_test_run", 1, 10)
	require.NoError(t, err)
	params.Profile["perf"] = "enabled"
	w, err := archive.NewWriter(t.TempDir(), params)
	require.NoError(t, err)
	return w
}

// readBackCollector round-trips through a fresh Reader since Writer has
// no direct accessor for what it just appended.
func readBackCollector(t *testing.T, w *archive.Writer, collector string) []archive.RawSample {
	t.Helper()
	r, err := archive.OpenReader(w.Dir())
	require.NoError(t, err)
	samples, err := r.ReadCollector(collector)
	require.NoError(t, err)
	return samples
}

func TestRecordArtifact_AppendsSizedSample(t *testing.T) {
	w := newProfileWriter(t)
	path := filepath.Join(t.TempDir(), "perf.data")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	require.NoError(t, RecordArtifact(w, "perf", "perf.data", path))

	raw := readBackCollector(t, w, ProfileFileName)
	require.Len(t, raw, 1)

	c := &ProfileCollector{}
	data, err := c.Transform(raw)
	require.NoError(t, err)
	graph, ok := data.(*aperfdata.Graph)
	require.True(t, ok)
	grp, ok := graph.GraphGroups["perf"]
	require.True(t, ok)
	gf, ok := grp.Graphs["perf.data"]
	require.True(t, ok)
	require.Equal(t, uint64(10), uint64(*gf.GraphSize))
}

func TestRecordArtifact_MissingFileRecordsZeroSize(t *testing.T) {
	w := newProfileWriter(t)
	require.NoError(t, RecordArtifact(w, "java", "profile.html", filepath.Join(t.TempDir(), "missing.html")))

	raw := readBackCollector(t, w, ProfileFileName)
	require.Len(t, raw, 1)

	c := &ProfileCollector{}
	data, err := c.Transform(raw)
	require.NoError(t, err)
	graph := data.(*aperfdata.Graph)
	gf := graph.GraphGroups["java"].Graphs["profile.html"]
	require.Equal(t, uint64(0), uint64(*gf.GraphSize))
}

func TestProfileCollector_Transform_Empty(t *testing.T) {
	c := &ProfileCollector{}
	data, err := c.Transform(nil)
	require.NoError(t, err)
	graph := data.(*aperfdata.Graph)
	require.Empty(t, graph.GraphGroups)
}
