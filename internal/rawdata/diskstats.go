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

const DiskstatsFileName = "diskstats"

// diskstatsFields names the 11 kernel-documented /proc/diskstats
// counters this collector keeps (the read, write, and in-flight I/O
// stats; it skips the 3 leading device-identity columns and ignores
// any discard/flush columns after them).
var diskstatsFields = []string{
	"reads_completed", "reads_merged", "sectors_read", "ms_reading",
	"writes_completed", "writes_merged", "sectors_written", "ms_writing",
	"ios_in_progress", "ms_doing_io", "weighted_ms_doing_io",
}

// DiskstatsRawSample is one tick's /proc/diskstats snapshot, keyed by
// device name then by field.
type DiskstatsRawSample struct {
	Devices map[string]map[string]uint64 `json:"devices"`
}

type DiskstatsCollector struct{}

func NewDiskstatsCollector() *DiskstatsCollector { return &DiskstatsCollector{} }

func (*DiskstatsCollector) Name() string     { return "diskstats" }
func (*DiskstatsCollector) FileName() string { return DiskstatsFileName }

func (*DiskstatsCollector) CollectData(_ time.Time) (any, error) {
	return sampleDiskstats()
}

func sampleDiskstats() (DiskstatsRawSample, error) {
	f, err := os.Open("/proc/diskstats")
	if err != nil {
		return DiskstatsRawSample{}, err
	}
	defer f.Close()

	sample := DiskstatsRawSample{Devices: make(map[string]map[string]uint64)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) < 3+len(diskstatsFields) {
			continue
		}
		device := parts[2]
		fields := make(map[string]uint64, len(diskstatsFields))
		for i, name := range diskstatsFields {
			v, err := strconv.ParseUint(parts[3+i], 10, 64)
			if err != nil {
				return DiskstatsRawSample{}, fmt.Errorf("diskstats: parse %s %s: %w", device, name, err)
			}
			fields[name] = v
		}
		sample.Devices[device] = fields
	}
	return sample, sc.Err()
}

// Transform builds one TimeSeries metric per diskstats field, with one
// Series per device and a mean aggregate, applying the counter delta
// rule.
func (*DiskstatsCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[DiskstatsRawSample](raw)
	if err != nil {
		return nil, err
	}
	ts := aperfdata.NewTimeSeries()
	if len(samples) == 0 {
		return ts, nil
	}

	devices := make(map[string]bool)
	for _, s := range samples {
		for dev := range s.Payload.Devices {
			devices[dev] = true
		}
	}

	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}

	for _, field := range diskstatsFields {
		perDevice := make(map[string][]float64, len(devices))
		for dev := range devices {
			values := make([]float64, len(samples))
			for i, s := range samples {
				values[i] = float64(s.Payload.Devices[dev][field])
			}
			perDevice[dev] = values
		}
		ts.Metrics[field] = counterMetric(perDevice, times)
	}

	keys := make([]string, 0, len(ts.Metrics))
	for k := range ts.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts.SortedKeys = keys
	return ts, nil
}
