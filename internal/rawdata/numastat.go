package rawdata

import (
	"bufio"
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

const NumaStatFileName = "numastat"

// NumaRawSample is one tick's /sys/devices/system/node/node*/numastat
// snapshot, keyed by node ("node0", "node1", ...) then by field
// (numa_hit, numa_miss, local_node, other_node, interleave_hit,
// numa_foreign).
type NumaRawSample struct {
	Nodes map[string]map[string]uint64 `json:"nodes"`
}

// NumaStatCollector samples every NUMA node's numastat file once per
// tick.
type NumaStatCollector struct {
	sysPath string // overridable in tests; defaults to /sys/devices/system/node
}

func NewNumaStatCollector() *NumaStatCollector {
	return &NumaStatCollector{sysPath: "/sys/devices/system/node"}
}

func (*NumaStatCollector) Name() string     { return "numastat" }
func (*NumaStatCollector) FileName() string { return NumaStatFileName }

func (c *NumaStatCollector) CollectData(_ time.Time) (any, error) {
	return sampleNumaStat(c.sysPath)
}

func sampleNumaStat(sysPath string) (NumaRawSample, error) {
	entries, err := os.ReadDir(sysPath)
	if err != nil {
		return NumaRawSample{}, fmt.Errorf("numastat: list %s: %w", sysPath, err)
	}

	sample := NumaRawSample{Nodes: make(map[string]map[string]uint64)}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "node") {
			continue
		}
		path := filepath.Join(sysPath, e.Name(), "numastat")
		fields, err := parseNumaStatFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return NumaRawSample{}, err
		}
		sample.Nodes[e.Name()] = fields
	}
	if len(sample.Nodes) == 0 {
		return NumaRawSample{}, fmt.Errorf("numastat: no NUMA node directories found under %s", sysPath)
	}
	return sample, nil
}

func parseNumaStatFile(path string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fields := make(map[string]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("numastat: parse %s %s: %w", path, parts[0], err)
		}
		fields[parts[0]] = v
	}
	return fields, sc.Err()
}

// Transform builds one TimeSeries metric per numastat field, with one
// Series per NUMA node and a mean aggregate. Every numastat field is a
// monotonic counter, so the delta rule applies.
func (*NumaStatCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[NumaRawSample](raw)
	if err != nil {
		return nil, err
	}
	ts := aperfdata.NewTimeSeries()
	if len(samples) == 0 {
		return ts, nil
	}

	fieldSet := make(map[string]bool)
	for _, s := range samples {
		for _, fields := range s.Payload.Nodes {
			for field := range fields {
				fieldSet[field] = true
			}
		}
	}

	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}

	for field := range fieldSet {
		perNode := make(map[string][]float64)
		for node := range samples[0].Payload.Nodes {
			values := make([]float64, len(samples))
			for i, s := range samples {
				values[i] = float64(s.Payload.Nodes[node][field])
			}
			perNode[node] = values
		}
		ts.Metrics[field] = counterMetric(perNode, times)
	}

	keys := make([]string, 0, len(ts.Metrics))
	for k := range ts.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts.SortedKeys = keys
	return ts, nil
}
