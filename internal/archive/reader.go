package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RawSample is one decoded (time, payload) pair read back from a
// collector's log.
type RawSample struct {
	Time    time.Time
	Payload json.RawMessage
}

// Reader consumes (read-only) a sealed run archive.
type Reader struct {
	dir string
}

// OpenReader opens runDir for reading. Sealing is the normal
// precondition, but an unsealed run is still readable.
func OpenReader(runDir string) (*Reader, error) {
	if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("archive: %s is not a run directory", runDir)
	}
	return &Reader{dir: runDir}, nil
}

// Dir returns the run's archive directory.
func (r *Reader) Dir() string { return r.dir }

// RunName derives the run name from the directory's base name.
func (r *Reader) RunName() string {
	return strings.TrimSuffix(filepath.Base(r.dir), filepath.Ext(r.dir))
}

// ReadRunInfo loads and decodes run_info.
func (r *Reader) ReadRunInfo() (InitParams, error) {
	b, err := os.ReadFile(filepath.Join(r.dir, "run_info"))
	if err != nil {
		return InitParams{}, fmt.Errorf("archive: read run_info: %w", err)
	}
	var params InitParams
	if err := yaml.Unmarshal(b, &params); err != nil {
		return InitParams{}, fmt.Errorf("archive: decode run_info: %w", err)
	}
	return params, nil
}

// HasCollector reports whether collector has a log file in this run.
func (r *Reader) HasCollector(collector string) bool {
	_, err := os.Stat(filepath.Join(r.dir, collector+".bin"))
	return err == nil
}

// Collectors lists every collector log file name (without extension)
// present in the run.
func (r *Reader) Collectors() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", r.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".bin"))
	}
	return names, nil
}

// ReadCollector streams every raw sample for collector, in on-disk
// (issuing) order.
func (r *Reader) ReadCollector(collector string) ([]RawSample, error) {
	path := filepath.Join(r.dir, collector+".bin")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	var samples []RawSample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var env rawEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("archive: decode %s sample: %w", collector, err)
		}
		samples = append(samples, RawSample{Time: env.Time, Payload: env.Payload})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("archive: scan %s: %w", collector, err)
	}
	return samples, nil
}
