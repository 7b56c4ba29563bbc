// Package runtime drives every enabled collector on a fixed interval
// for a fixed period. Tick targets are absolute, a tick more than one
// interval late is skipped rather than queued, and a failing collector
// never aborts a tick.
package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/internal/pdaerr"
	"github.com/aperf-project/aperf/internal/registry"
	"github.com/aperf-project/aperf/internal/timebase"
)

// Waiter abstracts the absolute-time sleep point so tests can drive
// the tick schedule without real wall-clock delays.
type Waiter interface {
	Now() time.Time
	SleepUntil(target time.Time)
}

// realWaiter is the production Waiter.
type realWaiter struct{}

func (realWaiter) Now() time.Time { return time.Now() }
func (realWaiter) SleepUntil(target time.Time) {
	if d := time.Until(target); d > 0 {
		time.Sleep(d)
	}
}

// NewRealWaiter returns the production, wall-clock-backed Waiter.
func NewRealWaiter() Waiter { return realWaiter{} }

// TickOutcome records what happened at one scheduled tick, for
// End-time reporting.
type TickOutcome struct {
	Index    int
	Target   time.Time
	Skipped  bool
	Errors   []error
}

// Runtime drives the registry's collectors through one run's lifecycle:
// Init -> Prepare -> CollectStatic -> CollectDataSerial -> End.
type Runtime struct {
	reg    *registry.Registry
	writer *archive.Writer
	params archive.InitParams
	waiter Waiter
	logger *slog.Logger

	initialized []registry.Collector
	ticks       []TickOutcome
}

// New builds a Runtime for one run.
func New(reg *registry.Registry, writer *archive.Writer, params archive.InitParams, waiter Waiter, logger *slog.Logger) *Runtime {
	if waiter == nil {
		waiter = NewRealWaiter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{reg: reg, writer: writer, params: params, waiter: waiter, logger: logger}
}

// InitCollectors calls each enabled collector's Init hook in
// registration order. On failure it tears down every collector already
// initialized.
func (rt *Runtime) InitCollectors() error {
	for _, c := range rt.reg.Enabled() {
		init, ok := c.(registry.Initializer)
		if !ok {
			continue
		}
		if err := init.Init(); err != nil {
			rt.teardown()
			return pdaerr.Wrap(pdaerr.CollectorInit, "init failed", err).WithCollector(c.Name())
		}
		rt.initialized = append(rt.initialized, c)
	}
	return nil
}

func (rt *Runtime) teardown() {
	for i := len(rt.initialized) - 1; i >= 0; i-- {
		if closer, ok := rt.initialized[i].(registry.Closer); ok {
			_ = closer.Close()
		}
	}
	rt.initialized = nil
}

// PrepareDataCollectors runs the one-shot preparation hook for every
// enabled collector that has one. Kept distinct from InitCollectors so
// static snapshots can run without it.
func (rt *Runtime) PrepareDataCollectors() error {
	for _, c := range rt.reg.Enabled() {
		prep, ok := c.(registry.Preparer)
		if !ok {
			continue
		}
		if err := prep.Prepare(); err != nil {
			return pdaerr.Wrap(pdaerr.CollectorInit, "prepare failed", err).WithCollector(c.Name())
		}
	}
	return nil
}

// CollectStaticData gathers host-invariant data exactly once per
// enabled static collector. Collector failures are logged and do not
// abort the run; archive failures do.
func (rt *Runtime) CollectStaticData() error {
	for _, c := range rt.reg.Enabled() {
		sampler, ok := c.(registry.StaticSampler)
		if !ok {
			continue
		}
		payload, err := sampler.CollectStatic()
		if err != nil {
			rt.logger.Warn("static collector failed", "collector", c.Name(), "err", err)
			continue
		}
		if err := rt.writer.Append(c.FileName(), rt.waiter.Now(), payload); err != nil {
			return pdaerr.Wrap(pdaerr.ArchiveIO, "append static sample", err).WithCollector(c.Name())
		}
	}
	return nil
}

// CollectDataSerial runs the periodic loop: N = floor(period/interval)
// ticks, each woken at an absolute target time T0+k*interval,
// dispatching every enabled periodic collector in registration order.
// A tick reached less than one interval after its target still runs
// (late); a tick reached more than one interval after its target is
// skipped, never queued, preserving long-run wall-clock alignment.
func (rt *Runtime) CollectDataSerial() error {
	interval := time.Duration(rt.params.Interval) * time.Second
	period := time.Duration(rt.params.Period) * time.Second
	start := rt.params.StartTime
	if start.IsZero() {
		start = rt.waiter.Now()
	}

	schedule := timebase.TickSchedule(start, interval, period)
	periodic := make([]registry.Collector, 0)
	for _, c := range rt.reg.Enabled() {
		if _, ok := c.(registry.PeriodicSampler); ok {
			periodic = append(periodic, c)
		}
	}

	for k, target := range schedule {
		outcome := TickOutcome{Index: k, Target: target}

		if rt.waiter.Now().After(target.Add(interval)) {
			outcome.Skipped = true
			rt.logger.Warn("tick skipped: cumulative work exceeded interval", "tick", k)
			rt.ticks = append(rt.ticks, outcome)
			continue
		}

		rt.waiter.SleepUntil(target)
		tickTime := rt.waiter.Now()

		for _, c := range periodic {
			sampler := c.(registry.PeriodicSampler)
			payload, err := sampler.CollectData(tickTime)
			if err != nil {
				werr := pdaerr.Wrap(pdaerr.TickCollector, "collect failed", err).WithCollector(c.Name()).WithTick(k)
				rt.logger.Warn("collector tick failed, continuing", "collector", c.Name(), "tick", k, "err", err)
				outcome.Errors = append(outcome.Errors, werr)
				continue
			}
			if err := rt.writer.Append(c.FileName(), tickTime, payload); err != nil {
				return pdaerr.Wrap(pdaerr.ArchiveIO, "append sample", err).WithCollector(c.Name()).WithTick(k)
			}
		}
		rt.ticks = append(rt.ticks, outcome)
	}
	return nil
}

// Ticks returns every recorded tick outcome, for end()-time reporting.
func (rt *Runtime) Ticks() []TickOutcome { return rt.ticks }

// TickErrors flattens every non-fatal collector error accumulated
// across all ticks, for End-time reporting.
func (rt *Runtime) TickErrors() []error {
	var errs []error
	for _, t := range rt.ticks {
		errs = append(errs, t.Errors...)
	}
	return errs
}

// End flushes, closes, and seals the archive, joins any collector
// subprocess handles (via Closer), and reports accumulated errors.
func (rt *Runtime) End() error {
	for _, c := range rt.reg.Enabled() {
		if closer, ok := c.(registry.Closer); ok {
			if err := closer.Close(); err != nil {
				rt.logger.Warn("collector close failed", "collector", c.Name(), "err", err)
			}
		}
	}
	if err := rt.writer.Seal(); err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "seal archive", err)
	}
	if n := len(rt.TickErrors()); n > 0 {
		rt.logger.Warn(fmt.Sprintf("run completed with %d non-fatal collector error(s)", n))
	}
	return nil
}
