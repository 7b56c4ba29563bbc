package rawdata

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

const VmstatFileName = "vmstat"

// VmstatRawSample is one tick's /proc/vmstat snapshot. Every field in
// vmstat is a monotonic, since-boot counter.
type VmstatRawSample struct {
	Fields map[string]uint64 `json:"fields"`
}

type VmstatCollector struct{}

func NewVmstatCollector() *VmstatCollector { return &VmstatCollector{} }

func (*VmstatCollector) Name() string     { return "vmstat" }
func (*VmstatCollector) FileName() string { return VmstatFileName }

func (*VmstatCollector) CollectData(_ time.Time) (any, error) {
	return sampleLinesFile("/proc/vmstat", "vmstat")
}

// sampleLinesFile parses a "<key> <uint>" per-line kernel text file
// such as /proc/vmstat. netstat's paired header/value layout is parsed
// separately by parseNetstatFile.
func sampleLinesFile(path, label string) (VmstatRawSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return VmstatRawSample{}, err
	}
	defer f.Close()

	sample := VmstatRawSample{Fields: make(map[string]uint64)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return VmstatRawSample{}, fmt.Errorf("%s: parse %s: %w", label, parts[0], err)
		}
		sample.Fields[parts[0]] = v
	}
	return sample, sc.Err()
}

// Transform builds one single-series counter metric per vmstat field,
// applying the counter delta rule.
func (*VmstatCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	return transformFieldCounters(raw)
}

// transformFieldCounters is shared by vmstat and netstat: both decode
// to VmstatRawSample (a flat field->uint64 map) and apply the counter
// delta rule per field with no sub-entity split.
func transformFieldCounters(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[VmstatRawSample](raw)
	if err != nil {
		return nil, err
	}
	ts := aperfdata.NewTimeSeries()
	if len(samples) == 0 {
		return ts, nil
	}

	fieldSet := make(map[string]bool)
	for _, s := range samples {
		for field := range s.Payload.Fields {
			fieldSet[field] = true
		}
	}

	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}

	for field := range fieldSet {
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = float64(s.Payload.Fields[field])
		}
		ts.Metrics[field] = singleCounterMetric(values, times)
	}

	keys := make([]string, 0, len(ts.Metrics))
	for k := range ts.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts.SortedKeys = keys
	return ts, nil
}
