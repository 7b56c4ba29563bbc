// Package aperfdata defines the normalized visualization data model:
// the four AperfData variants, ProcessedData, and the Findings shape
// the analytics engine populates.
//
// The wire form is untagged: the object shape itself discriminates
// which variant a JSON blob is (metrics => TimeSeries, lines => Text,
// key_value_groups => KeyValue, graph_groups => Graph). Internally
// each variant is a distinct, tagged Go type; AperfData is an interface
// implemented by all four, and encoding/json marshals whatever concrete
// value the interface holds, so no discriminator field is ever written.
package aperfdata

import (
	"encoding/json"

	"github.com/aperf-project/aperf/internal/computations"
	"github.com/aperf-project/aperf/pkg/types"
)

// AperfData is the normalized shape every raw-parser transform (C6)
// produces exactly one of, per collector, per run.
type AperfData interface {
	// FormatName returns the format name ProcessedData denormalizes
	// into its data_format field.
	FormatName() string
	isAperfData()
}

const (
	FormatTimeSeries = "time_series"
	FormatText       = "text"
	FormatKeyValue   = "key_value"
	FormatGraph      = "graph"
)

// TimeSeries is the AperfData variant for numeric, time-indexed
// counters (CPU, NUMA, vmstat, netstat, disk stats, ...).
type TimeSeries struct {
	Metrics    map[string]*TimeSeriesMetric `json:"metrics"`
	SortedKeys []string                     `json:"sorted_keys"`
}

func NewTimeSeries() *TimeSeries {
	return &TimeSeries{Metrics: make(map[string]*TimeSeriesMetric)}
}

func (*TimeSeries) isAperfData()       {}
func (*TimeSeries) FormatName() string { return FormatTimeSeries }

// TimeSeriesMetric holds every Series for one metric (e.g. one series
// per NUMA node plus the aggregate) and the Statistics computed from
// the aggregate series.
type TimeSeriesMetric struct {
	Series   []*Series                 `json:"series"`
	Metadata map[string]string         `json:"metadata"`
	Stats    computations.Statistics `json:"stats"`
}

// Series is one entity's (or the aggregate's) sample sequence for a
// metric. Invariant: len(TimeDiff) == len(Values).
type Series struct {
	SeriesName  *string   `json:"series_name,omitempty"`
	TimeDiff    []uint64  `json:"time_diff"`
	Values      []float64 `json:"-"`
	IsAggregate bool      `json:"is_aggregate"`
}

// MarshalJSON truncates Values to two decimal places on the wire.
func (s *Series) MarshalJSON() ([]byte, error) {
	type wire struct {
		SeriesName  *string   `json:"series_name,omitempty"`
		TimeDiff    []uint64  `json:"time_diff"`
		Values      []float64 `json:"values"`
		IsAggregate bool      `json:"is_aggregate"`
	}
	trunc := make([]float64, len(s.Values))
	for i, v := range s.Values {
		trunc[i] = computations.TruncFixed2(v)
	}
	return json.Marshal(wire{
		SeriesName:  s.SeriesName,
		TimeDiff:    s.TimeDiff,
		Values:      trunc,
		IsAggregate: s.IsAggregate,
	})
}

// Text is the AperfData variant for free-form textual snapshots.
type Text struct {
	Lines []string `json:"lines"`
}

func (*Text) isAperfData()       {}
func (*Text) FormatName() string { return FormatText }

// KeyValue is the AperfData variant for flat string->string data
// (sysctl, system info). The unnamed group is "".
type KeyValue struct {
	KeyValueGroups map[string]*KeyValueGroup `json:"key_value_groups"`
}

func NewKeyValue() *KeyValue {
	return &KeyValue{KeyValueGroups: map[string]*KeyValueGroup{
		"": {KeyValues: make(map[string]string)},
	}}
}

func (*KeyValue) isAperfData()       {}
func (*KeyValue) FormatName() string { return FormatKeyValue }

// Unnamed returns the single unnamed ("") group, creating it if absent.
func (kv *KeyValue) Unnamed() *KeyValueGroup {
	g, ok := kv.KeyValueGroups[""]
	if !ok {
		g = &KeyValueGroup{KeyValues: make(map[string]string)}
		kv.KeyValueGroups[""] = g
	}
	return g
}

type KeyValueGroup struct {
	KeyValues map[string]string `json:"key_values"`
}

// Graph is the AperfData variant for file-path-producing transforms
// (flamegraphs, perf report).
type Graph struct {
	GraphGroups map[string]*GraphGroup `json:"graph_groups"`
}

func NewGraph() *Graph {
	return &Graph{GraphGroups: make(map[string]*GraphGroup)}
}

func (*Graph) isAperfData()       {}
func (*Graph) FormatName() string { return FormatGraph }

type GraphGroup struct {
	GroupName string                `json:"group_name"`
	Graphs    map[string]*GraphFile `json:"graphs"`
}

type GraphFile struct {
	GraphName string       `json:"graph_name"`
	GraphPath string       `json:"graph_path"`
	GraphSize *types.Bytes `json:"graph_size,omitempty"`
}

// ProcessedData carries the same AperfData shape for every run under
// one data family name.
type ProcessedData struct {
	DataName   string               `json:"data_name"`
	DataFormat string               `json:"data_format"`
	Runs       map[string]AperfData `json:"runs"`
}

func NewProcessedData(dataName string) *ProcessedData {
	return &ProcessedData{DataName: dataName, Runs: make(map[string]AperfData)}
}

// Put stores data for run, denormalizing DataFormat from the first
// value seen.
func (p *ProcessedData) Put(run string, data AperfData) {
	if p.DataFormat == "" {
		p.DataFormat = data.FormatName()
	}
	p.Runs[run] = data
}

// Finding records one rule's assertion that a (run, data family)
// combination triggered.
type Finding struct {
	Rule    string  `json:"rule"`
	Message string  `json:"message"`
	Score   float64 `json:"score"`
}

const (
	ScoreGood = 1.0
	ScoreBad  = -1.0
)

// DataFindings maps each run that had at least one triggered rule to
// its findings.
type DataFindings struct {
	PerRunFindings map[string][]Finding `json:"per_run_findings"`
}

func NewDataFindings() *DataFindings {
	return &DataFindings{PerRunFindings: make(map[string][]Finding)}
}

// Add appends a finding for run, creating its slice if absent.
func (f *DataFindings) Add(run string, finding Finding) {
	f.PerRunFindings[run] = append(f.PerRunFindings[run], finding)
}
