// Package pdaerr defines the closed set of error kinds the core can
// surface. Every user-facing error carries enough context to identify
// the offending run, collector, and tick.
package pdaerr

import "fmt"

// Kind discriminates the closed set of error categories the core raises.
type Kind int

const (
	// InvalidParams means a user-supplied parameter failed validation
	// before any I/O started (e.g. interval >= period).
	InvalidParams Kind = iota
	// CollectorInit means one or more collectors failed their init
	// hook; partial state has been torn down.
	CollectorInit
	// TickCollector means a single collector failed within one tick.
	// Never fatal: the tick and the run continue.
	TickCollector
	// ArchiveIO means an archive-level write or read failed (cannot
	// open file, disk full); this is always fatal.
	ArchiveIO
	// ReportInput means the report bundler was given bad input
	// (duplicate run stems, a missing run_info/collector file).
	ReportInput
	// Transform means a collector's transform could not produce an
	// AperfData; the data family is skipped, other families continue.
	Transform
	// VerboseOption means -v/--verbose was stacked beyond the
	// supported range.
	VerboseOption
)

func (k Kind) String() string {
	switch k {
	case InvalidParams:
		return "invalid parameters"
	case CollectorInit:
		return "collector init failure"
	case TickCollector:
		return "collector tick failure"
	case ArchiveIO:
		return "archive I/O failure"
	case ReportInput:
		return "report input error"
	case Transform:
		return "transform error"
	case VerboseOption:
		return "invalid verbose option"
	default:
		return "unknown error"
	}
}

// Error is the core's closed, context-carrying error type.
type Error struct {
	Kind      Kind
	Run       string
	Collector string
	Tick      int
	HasTick   bool
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.Run != "" {
		s += fmt.Sprintf(" (run=%s", e.Run)
		if e.Collector != "" {
			s += fmt.Sprintf(" collector=%s", e.Collector)
		}
		if e.HasTick {
			s += fmt.Sprintf(" tick=%d", e.Tick)
		}
		s += ")"
	} else if e.Collector != "" {
		s += fmt.Sprintf(" (collector=%s)", e.Collector)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WithRun returns a copy of e annotated with a run name.
func (e *Error) WithRun(run string) *Error {
	c := *e
	c.Run = run
	return &c
}

// WithCollector returns a copy of e annotated with a collector name.
func (e *Error) WithCollector(collector string) *Error {
	c := *e
	c.Collector = collector
	return &c
}

// WithTick returns a copy of e annotated with a tick index.
func (e *Error) WithTick(tick int) *Error {
	c := *e
	c.Tick = tick
	c.HasTick = true
	return &c
}
