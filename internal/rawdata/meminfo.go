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

const MeminfoFileName = "meminfo"

// MeminfoRawSample is one tick's /proc/meminfo snapshot, in kB unless
// the field itself is a bare count (e.g. HugePages_Total).
type MeminfoRawSample struct {
	Fields map[string]uint64 `json:"fields"`
}

// MeminfoCollector samples /proc/meminfo once per tick. Every field is
// treated as an instantaneous gauge, not a monotonic counter; free
// memory goes up as often as it goes down.
type MeminfoCollector struct{}

func NewMeminfoCollector() *MeminfoCollector { return &MeminfoCollector{} }

func (*MeminfoCollector) Name() string     { return "meminfo" }
func (*MeminfoCollector) FileName() string { return MeminfoFileName }

func (*MeminfoCollector) CollectData(_ time.Time) (any, error) {
	return sampleMeminfo()
}

func sampleMeminfo() (MeminfoRawSample, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return MeminfoRawSample{}, err
	}
	defer f.Close()

	sample := MeminfoRawSample{Fields: make(map[string]uint64)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := line[:idx]
		rest := strings.Fields(line[idx+1:])
		if len(rest) == 0 {
			continue
		}
		v, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return MeminfoRawSample{}, fmt.Errorf("meminfo: parse %s: %w", key, err)
		}
		sample.Fields[key] = v
	}
	return sample, sc.Err()
}

// Transform builds one single-series (no sub-entity) gauge metric per
// meminfo field; there is no per-entity split for meminfo.
func (*MeminfoCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[MeminfoRawSample](raw)
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
		ts.Metrics[field] = singleGaugeMetric(values, times)
	}

	keys := make([]string, 0, len(ts.Metrics))
	for k := range ts.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts.SortedKeys = keys
	return ts, nil
}
