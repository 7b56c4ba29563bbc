// Package archive is the on-disk sample store: the append-only
// per-collector log, the run_info file, and the tar.gz sibling
// packaging.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// InitParams is a run's configuration, persisted verbatim as the
// archive's run_info file.
type InitParams struct {
	RunName       string            `yaml:"run_name"`
	Period        uint64            `yaml:"period"`
	Interval      uint64            `yaml:"interval"`
	StartTime     time.Time         `yaml:"start_time"`
	TmpDir        string            `yaml:"tmp_dir,omitempty"`
	PMUConfig     string            `yaml:"pmu_config,omitempty"`
	PerfFrequency uint32            `yaml:"perf_frequency,omitempty"`
	Profile       map[string]string `yaml:"profile,omitempty"`
}

// NewInitParams builds InitParams, generating a run name when none is
// given and validating the invariant 0 < interval < period.
func NewInitParams(runName string, interval, period uint64) (InitParams, error) {
	if period == 0 {
		return InitParams{}, fmt.Errorf("collection period cannot be 0")
	}
	if interval == 0 {
		return InitParams{}, fmt.Errorf("collection interval cannot be 0")
	}
	if interval >= period {
		return InitParams{}, fmt.Errorf(
			"the overall recording period of %d seconds needs to be longer than the interval of %d seconds",
			period, interval)
	}
	if runName == "" {
		runName = fmt.Sprintf("aperf_%s", time.Now().UTC().Format("20060102_150405"))
	}
	return InitParams{
		RunName:  runName,
		Period:   period,
		Interval: interval,
		Profile:  make(map[string]string),
	}, nil
}

// RunDir returns the archive directory path for a run under root.
func RunDir(root, runName string) string {
	return filepath.Join(root, runName)
}

// TarballPath returns the sibling .tar.gz path for a run under root.
func TarballPath(root, runName string) string {
	return filepath.Join(root, runName+".tar.gz")
}

// sealedMarker is the file written by Seal() once the last tick has
// flushed. Its presence signals a run is consumable by report.
const sealedMarker = ".sealed"

// IsSealed reports whether runDir has been sealed.
func IsSealed(runDir string) bool {
	_, err := os.Stat(filepath.Join(runDir, sealedMarker))
	return err == nil
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
