package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Writer owns the on-disk state for exactly one run; the record
// process is the only writer.
type Writer struct {
	root    string
	runName string
	dir     string
	params  InitParams

	mu        sync.Mutex
	appenders map[string]*os.File
}

// NewWriter creates the run directory (and profiles/ subtree if the
// run has profiling enabled) and returns a Writer ready to accept
// per-collector appends.
func NewWriter(root string, params InitParams) (*Writer, error) {
	dir := RunDir(root, params.RunName)
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("archive: create run directory: %w", err)
	}
	if len(params.Profile) > 0 {
		for _, sub := range []string{"profiles/perf", "profiles/flamegraphs", "profiles/java"} {
			if err := ensureDir(filepath.Join(dir, sub)); err != nil {
				return nil, fmt.Errorf("archive: create %s: %w", sub, err)
			}
		}
	}
	return &Writer{
		root:      root,
		runName:   params.RunName,
		dir:       dir,
		params:    params,
		appenders: make(map[string]*os.File),
	}, nil
}

// Dir returns the run's archive directory.
func (w *Writer) Dir() string { return w.dir }

// WriteRunInfo serializes InitParams to the run's run_info file as
// YAML.
func (w *Writer) WriteRunInfo() error {
	b, err := yaml.Marshal(w.params)
	if err != nil {
		return fmt.Errorf("archive: marshal run_info: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, "run_info"), b, 0o644)
}

// rawEnvelope is the on-disk shape of one raw sample line: a timestamp
// plus the collector-specific payload.
type rawEnvelope struct {
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// appenderFor opens (creating if needed) the append-only log file for
// collector, caching the handle for the lifetime of the Writer. Each
// collector owns at most one open file.
func (w *Writer) appenderFor(collector string) (*os.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.appenders[collector]; ok {
		return f, nil
	}
	path := filepath.Join(w.dir, collector+".bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w.appenders[collector] = f
	return f, nil
}

// Append writes one raw sample for collector, streaming it directly to
// disk so memory use stays flat over long runs.
func (w *Writer) Append(collector string, t time.Time, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("archive: marshal %s sample: %w", collector, err)
	}
	f, err := w.appenderFor(collector)
	if err != nil {
		return fmt.Errorf("archive: open %s log: %w", collector, err)
	}
	line, err := json.Marshal(rawEnvelope{Time: t, Payload: b})
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("archive: write %s sample: %w", collector, err)
	}
	return nil
}

// ProfileArtifactPath returns a path under the run's profiles/ subtree
// for external profiler subprocesses (perf, async-profiler) to write
// into. Launching and reaping those subprocesses is the caller's job.
func (w *Writer) ProfileArtifactPath(kind, name string) string {
	return filepath.Join(w.dir, "profiles", kind, name)
}

// Seal flushes and closes every open collector log and writes the
// sealed marker. A sealed run is consumable by report.
func (w *Writer) Seal() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, f := range w.appenders {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("archive: sync %s log: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("archive: close %s log: %w", name, err)
		}
	}
	return os.WriteFile(filepath.Join(w.dir, sealedMarker), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}
