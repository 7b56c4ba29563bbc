package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	root := t.TempDir()
	params, err := NewInitParams("testrun", 1, 2)
	require.NoError(t, err)

	w, err := NewWriter(root, params)
	require.NoError(t, err)
	require.NoError(t, w.WriteRunInfo())

	t0 := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, w.Append("cpu_utilization", t0, map[string]int{"value": 1}))
	require.NoError(t, w.Append("cpu_utilization", t0.Add(time.Second), map[string]int{"value": 2}))
	require.NoError(t, w.Seal())

	require.True(t, IsSealed(w.Dir()))

	r, err := OpenReader(w.Dir())
	require.NoError(t, err)

	info, err := r.ReadRunInfo()
	require.NoError(t, err)
	require.Equal(t, "testrun", info.RunName)
	require.Equal(t, uint64(1), info.Interval)
	require.Equal(t, uint64(2), info.Period)

	samples, err := r.ReadCollector("cpu_utilization")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.True(t, samples[0].Time.Before(samples[1].Time) || samples[0].Time.Equal(samples[1].Time))
}

func TestNewInitParams_IntervalMustBeLessThanPeriod(t *testing.T) {
	_, err := NewInitParams("r", 5, 5)
	require.Error(t, err)
	_, err = NewInitParams("r", 0, 5)
	require.Error(t, err)
	_, err = NewInitParams("r", 1, 0)
	require.Error(t, err)
}

func TestPackUnpackTarGzRoundTrip(t *testing.T) {
	root := t.TempDir()
	params, err := NewInitParams("r1", 1, 2)
	require.NoError(t, err)
	w, err := NewWriter(root, params)
	require.NoError(t, err)
	require.NoError(t, w.WriteRunInfo())
	require.NoError(t, w.Append("meminfo", time.Now(), map[string]string{"MemTotal": "1000"}))
	require.NoError(t, w.Seal())

	tarPath := TarballPath(root, "r1")
	require.NoError(t, PackTarGz(w.Dir(), tarPath))

	extractParent := t.TempDir()
	topLevel, err := UnpackTarGz(tarPath, extractParent)
	require.NoError(t, err)

	origFiles := map[string][]byte{}
	err = filepath.Walk(w.Dir(), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(w.Dir(), path)
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		origFiles[rel] = b
		return nil
	})
	require.NoError(t, err)

	for rel, want := range origFiles {
		got, rerr := os.ReadFile(filepath.Join(topLevel, rel))
		require.NoError(t, rerr)
		require.Equal(t, want, got, "file %s should round-trip byte-identical", rel)
	}
}
