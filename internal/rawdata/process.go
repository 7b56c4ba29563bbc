package rawdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

// ProcessStatsFileName is the archive file name for the per-process
// stats collector.
const ProcessStatsFileName = "process_stats"

var (
	errBadStatLine = errors.New("process_stats: malformed /proc/<pid>/stat line")
	errNoResident  = errors.New("process_stats: no resident-set size in status or statm")
)

// processRecord is one tracked PID's per-tick counters: CPU jiffies
// (active, monotonic), fault counts (monotonic), I/O byte counters
// (monotonic), and RSS (a gauge, not a monotonic counter).
type processRecord struct {
	CPUTicks uint64 `json:"cpu_ticks"`
	MinFlt   uint64 `json:"minflt"`
	MajFlt   uint64 `json:"majflt"`
	ReadB    uint64 `json:"read_bytes"`
	WriteB   uint64 `json:"write_bytes"`
	RSS      uint64 `json:"rss_bytes"`
}

// ProcessStatsRawSample is one tick's snapshot across every tracked
// PID, keyed by decimal PID string.
type ProcessStatsRawSample struct {
	Processes map[string]processRecord `json:"processes"`
}

// ProcessStatsCollector samples CPU, fault, I/O, and RSS counters for a
// fixed set of PIDs once per tick by reading the per-PID files under
// /proc directly.
type ProcessStatsCollector struct {
	pids []int
}

// NewProcessStatsCollector tracks pids. If pids is empty, the
// collector's own process (os.Getpid()) and its discovered children
// are tracked, the common case for "this record invocation" rather
// than an externally supplied PID list.
func NewProcessStatsCollector(pids []int) *ProcessStatsCollector {
	return &ProcessStatsCollector{pids: pids}
}

func (*ProcessStatsCollector) Name() string     { return "process_stats" }
func (*ProcessStatsCollector) FileName() string { return ProcessStatsFileName }

func (c *ProcessStatsCollector) Init() error {
	if len(c.pids) == 0 {
		self := os.Getpid()
		c.pids = append([]int{self}, discoverChildren(self)...)
	}
	return nil
}

func (c *ProcessStatsCollector) CollectData(_ time.Time) (any, error) {
	sample := ProcessStatsRawSample{Processes: make(map[string]processRecord, len(c.pids))}
	for _, pid := range c.pids {
		rec, ok := samplePid(pid)
		if !ok {
			continue // process exited; it drops out of this tick
		}
		sample.Processes[strconv.Itoa(pid)] = rec
	}
	return sample, nil
}

// Transform builds one TimeSeries metric per counter field, with one
// Series per tracked PID and a mean aggregate: CPU ticks, fault
// counts, and I/O bytes are monotonic counters converted to deltas;
// RSS is a gauge sampled as-is.
func (*ProcessStatsCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[ProcessStatsRawSample](raw)
	if err != nil {
		return nil, err
	}
	ts := aperfdata.NewTimeSeries()
	if len(samples) == 0 {
		return ts, nil
	}

	pidSet := make(map[string]bool)
	for _, s := range samples {
		for pid := range s.Payload.Processes {
			pidSet[pid] = true
		}
	}

	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}

	counterField := func(get func(processRecord) uint64) map[string][]float64 {
		out := make(map[string][]float64, len(pidSet))
		for pid := range pidSet {
			values := make([]float64, len(samples))
			for i, s := range samples {
				values[i] = float64(get(s.Payload.Processes[pid]))
			}
			out[pid] = values
		}
		return out
	}

	ts.Metrics["cpu_ticks"] = counterMetric(counterField(func(r processRecord) uint64 { return r.CPUTicks }), times)
	ts.Metrics["minor_faults"] = counterMetric(counterField(func(r processRecord) uint64 { return r.MinFlt }), times)
	ts.Metrics["major_faults"] = counterMetric(counterField(func(r processRecord) uint64 { return r.MajFlt }), times)
	ts.Metrics["read_bytes"] = counterMetric(counterField(func(r processRecord) uint64 { return r.ReadB }), times)
	ts.Metrics["write_bytes"] = counterMetric(counterField(func(r processRecord) uint64 { return r.WriteB }), times)
	ts.Metrics["rss_bytes"] = gaugeMetric(counterField(func(r processRecord) uint64 { return r.RSS }), times)

	if mode, controllers := cgroupMode("/sys/fs/cgroup"); mode != "none" {
		for _, m := range ts.Metrics {
			m.Metadata["cgroup"] = mode
			if controllers != "" {
				m.Metadata["cgroup_controllers"] = controllers
			}
		}
	}

	keys := make([]string, 0, len(ts.Metrics))
	for k := range ts.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts.SortedKeys = keys
	return ts, nil
}

// --- per-PID sampling ---

// samplePid gathers one PID's counters for a tick. A missing or
// malformed stat file means the process is gone and the PID is skipped
// for the tick; the io and status files are optional (kernel threads
// have no io file, and both can be unreadable across user boundaries),
// so their counters stay zero rather than invalidating the sample.
func samplePid(pid int) (processRecord, bool) {
	var rec processRecord
	ticks, minflt, majflt, err := readStatCounters(pid)
	if err != nil {
		return rec, false
	}
	rec.CPUTicks, rec.MinFlt, rec.MajFlt = ticks, minflt, majflt
	if r, w, err := readIOCounters(pid); err == nil {
		rec.ReadB, rec.WriteB = r, w
	}
	if rss, err := readResidentBytes(pid); err == nil {
		rec.RSS = rss
	}
	return rec, true
}

// Field numbers in /proc/<pid>/stat, 1-based as documented in proc(5).
// statFields preserves this numbering, so fields[n-1] is field n.
const (
	statMinFlt = 10
	statMajFlt = 12
	statUtime  = 14
	statStime  = 15
)

// statFields splits one /proc/<pid>/stat line so that proc(5)'s field
// numbering applies directly. comm (field 2) is parenthesized and may
// itself contain spaces and ')' characters, so the split anchors on
// the first '(' and the last ')' instead of treating the line as
// uniformly whitespace-separated.
func statFields(line string) ([]string, error) {
	open := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if open < 0 || end < open {
		return nil, errBadStatLine
	}
	fields := make([]string, 0, 24)
	fields = append(fields, strings.TrimSpace(line[:open]), line[open+1:end])
	fields = append(fields, strings.Fields(line[end+1:])...)
	return fields, nil
}

func statUint(fields []string, n int) (uint64, error) {
	if n > len(fields) {
		return 0, errBadStatLine
	}
	return strconv.ParseUint(fields[n-1], 10, 64)
}

// readStatCounters extracts the CPU-jiffy and page-fault counters from
// /proc/<pid>/stat. Any required field failing to parse invalidates
// the whole read: a half-parsed stat line would put a garbage point
// into a monotonic series and corrupt every delta after it.
func readStatCounters(pid int) (cpuTicks, minflt, majflt uint64, err error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, 0, 0, err
	}
	fields, err := statFields(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, 0, 0, err
	}
	utime, err := statUint(fields, statUtime)
	if err != nil {
		return 0, 0, 0, err
	}
	stime, err := statUint(fields, statStime)
	if err != nil {
		return 0, 0, 0, err
	}
	if minflt, err = statUint(fields, statMinFlt); err != nil {
		return 0, 0, 0, err
	}
	if majflt, err = statUint(fields, statMajFlt); err != nil {
		return 0, 0, 0, err
	}
	return utime + stime, minflt, majflt, nil
}

// readIOCounters parses /proc/<pid>/io into its "key: value" pairs and
// picks out the storage-layer byte counters. The file does not exist
// for kernel threads and is unreadable across user boundaries; callers
// treat any error as "no I/O data this tick".
func readIOCounters(pid int) (readBytes, writeBytes uint64, err error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/io", pid))
	if err != nil {
		return 0, 0, err
	}
	kv := make(map[string]uint64, 8)
	for _, line := range strings.Split(string(b), "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if n, perr := strconv.ParseUint(strings.TrimSpace(val), 10, 64); perr == nil {
			kv[key] = n
		}
	}
	return kv["read_bytes"], kv["write_bytes"], nil
}

// readResidentBytes returns pid's resident set size in bytes. VmRSS in
// /proc/<pid>/status is the primary source: it is present for every
// userspace process and costs a single page read, which matters when
// sampling every tick (smaps_rollup is more precise but walks the
// VMA list on every open). statm's resident page count is the
// fallback for the rare status file without memory lines.
func readResidentBytes(pid int) (uint64, error) {
	if kb, ok := statusField(pid, "VmRSS"); ok {
		return kb * 1024, nil
	}
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0, errNoResident
	}
	fields := strings.Fields(string(b))
	if len(fields) < 2 {
		return 0, errNoResident
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, errNoResident
	}
	return pages * uint64(os.Getpagesize()), nil
}

// statusField reads one numeric line ("<key>:  <n> [kB]") out of
// /proc/<pid>/status.
func statusField(pid int, key string) (uint64, bool) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(b), "\n") {
		k, val, ok := strings.Cut(line, ":")
		if !ok || k != key {
			continue
		}
		fields := strings.Fields(val)
		if len(fields) == 0 {
			return 0, false
		}
		n, err := strconv.ParseUint(fields[0], 10, 64)
		return n, err == nil
	}
	return 0, false
}

// discoverChildren walks /proc once and returns every PID whose PPid
// is parent. Matching on PPid works on any kernel, unlike the
// task/*/children interface, which needs CONFIG_PROC_CHILDREN. An
// empty result is a normal outcome, not an error: most record
// invocations have forked nothing by init time.
func discoverChildren(parent int) []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var kids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == parent {
			continue
		}
		if ppid, ok := statusField(pid, "PPid"); ok && int(ppid) == parent {
			kids = append(kids, pid)
		}
	}
	return kids
}

// --- cgroup detection ---

// cgroupMode classifies the hierarchy mounted at root (normally
// /sys/fs/cgroup) by its contents rather than by parsing mount
// tables: a cgroup.controllers file at the top marks the unified v2
// hierarchy; per-controller directories without one mark v1; a v1
// layout carrying a nested unified subtree is the hybrid arrangement
// some init systems set up. The controllers string names what is
// available (v2: the controllers file; v1: the mounted controller
// directories).
func cgroupMode(root string) (mode, controllers string) {
	if b, err := os.ReadFile(filepath.Join(root, "cgroup.controllers")); err == nil {
		return "v2", strings.Join(strings.Fields(string(b)), ",")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "none", ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "none", ""
	}
	mode = "v1"
	if _, err := os.Stat(filepath.Join(root, "unified", "cgroup.controllers")); err == nil {
		mode = "hybrid"
	}
	sort.Strings(names)
	return mode, strings.Join(names, ",")
}
