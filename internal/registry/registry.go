// Package registry is the collector catalog: the set of registered
// collectors, their metadata, and whether each is enabled for a given
// run.
package registry

import (
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

// Collector is the base capability every registered collector has: a
// display name and the archive file name its samples are logged under.
type Collector interface {
	Name() string
	FileName() string
}

// Initializer is implemented by collectors with a setup hook.
type Initializer interface {
	Init() error
}

// Preparer is implemented by collectors needing one-shot preparation
// distinct from Init, such as spawning an external profiler. Static
// snapshots run without it.
type Preparer interface {
	Prepare() error
}

// StaticSampler is implemented by collectors that gather host-invariant
// data exactly once: system info, kernel version, sysctl snapshot.
type StaticSampler interface {
	CollectStatic() (any, error)
}

// PeriodicSampler is implemented by collectors driven by the tick loop.
type PeriodicSampler interface {
	CollectData(t time.Time) (any, error)
}

// Closer is implemented by collectors holding a resource that must be
// released when the run ends, such as a profiler subprocess to join.
type Closer interface {
	Close() error
}

// Transformer is implemented by every collector: given its own raw
// samples read back from the archive, produce the one AperfData value
// report uses for that collector.
type Transformer interface {
	Transform(samples []archive.RawSample) (aperfdata.AperfData, error)
}

// Entry pairs a Collector with whether it is enabled for the run.
type Entry struct {
	Collector Collector
	Enabled   bool
}

// Registry is the ordered catalog of collectors. Registration order is
// dispatch order within a tick.
type Registry struct {
	entries []Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register adds a collector in registration order, enabled by default.
func (r *Registry) Register(c Collector) {
	r.entries = append(r.entries, Entry{Collector: c, Enabled: true})
}

// SetEnabled toggles whether a named collector participates in a run.
func (r *Registry) SetEnabled(name string, enabled bool) {
	for i := range r.entries {
		if r.entries[i].Collector.Name() == name {
			r.entries[i].Enabled = enabled
			return
		}
	}
}

// Enabled returns every enabled collector, in registration order.
func (r *Registry) Enabled() []Collector {
	out := make([]Collector, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Enabled {
			out = append(out, e.Collector)
		}
	}
	return out
}

// All returns every registered collector regardless of enablement, in
// registration order.
func (r *Registry) All() []Collector {
	out := make([]Collector, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Collector)
	}
	return out
}
