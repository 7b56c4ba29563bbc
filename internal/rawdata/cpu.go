package rawdata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

// CPUUtilizationFileName is the archive file name for this collector.
const CPUUtilizationFileName = "cpu_utilization"

// cpuJiffies holds one core's (or the system aggregate's) /proc/stat
// jiffy counters, in the fixed field order the kernel documents.
type cpuJiffies struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ, Steal uint64
}

func (j cpuJiffies) active() uint64 {
	return j.User + j.Nice + j.System + j.IRQ + j.SoftIRQ + j.Steal
}

func (j cpuJiffies) total() uint64 {
	return j.active() + j.Idle + j.IOWait
}

// CPURawSample is the per-tick raw record: one jiffy snapshot per
// logical CPU, keyed "cpu0", "cpu1", ...
type CPURawSample struct {
	Cores map[string]cpuJiffies `json:"cores"`
}

// CPUCollector samples /proc/stat once per tick.
type CPUCollector struct{}

func NewCPUCollector() *CPUCollector { return &CPUCollector{} }

func (*CPUCollector) Name() string     { return "cpu_utilization" }
func (*CPUCollector) FileName() string { return CPUUtilizationFileName }

func (*CPUCollector) CollectData(_ time.Time) (any, error) {
	return sampleProcStatPerCore()
}

func sampleProcStatPerCore() (CPURawSample, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return CPURawSample{}, err
	}
	defer f.Close()

	sample := CPURawSample{Cores: make(map[string]cpuJiffies)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}
		if fields[0] == "cpu" {
			continue // skip the aggregate line; we build our own aggregate
		}
		if len(fields) < 8 {
			continue
		}
		vals := make([]uint64, 8)
		for i := 0; i < 8; i++ {
			v, err := strconv.ParseUint(fields[i+1], 10, 64)
			if err != nil {
				return CPURawSample{}, fmt.Errorf("cpu_utilization: parse %s: %w", fields[0], err)
			}
			vals[i] = v
		}
		sample.Cores[fields[0]] = cpuJiffies{
			User: vals[0], Nice: vals[1], System: vals[2], Idle: vals[3],
			IOWait: vals[4], IRQ: vals[5], SoftIRQ: vals[6], Steal: vals[7],
		}
	}
	if err := sc.Err(); err != nil {
		return CPURawSample{}, err
	}
	if len(sample.Cores) == 0 {
		return CPURawSample{}, fmt.Errorf("cpu_utilization: no per-cpu lines in /proc/stat")
	}
	return sample, nil
}

// Transform turns a sequence of CPURawSample into a TimeSeries of
// per-core utilization percentages plus the mean aggregate.
// Utilization is a ratio of jiffy deltas between consecutive ticks, so
// the first tick's value is 0.0: there is no previous point yet.
func (*CPUCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[CPURawSample](raw)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return aperfdata.NewTimeSeries(), nil
	}

	cores := make(map[string]bool)
	for _, s := range samples {
		for core := range s.Payload.Cores {
			cores[core] = true
		}
	}

	perCore := make(map[string][]float64, len(cores))
	for core := range cores {
		values := make([]float64, len(samples))
		var prev cpuJiffies
		havePrev := false
		for i, s := range samples {
			cur, ok := s.Payload.Cores[core]
			if !ok {
				continue
			}
			if !havePrev {
				values[i] = 0
				prev = cur
				havePrev = true
				continue
			}
			dActive := float64(cur.active() - prev.active())
			dTotal := float64(cur.total() - prev.total())
			if dTotal > 0 {
				values[i] = (dActive / dTotal) * 100
			}
			prev = cur
		}
		perCore[core] = values
	}

	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}

	ts := aperfdata.NewTimeSeries()
	metric := gaugeMetric(perCore, times) // values already computed as %; no further delta
	ts.Metrics["utilization_pct"] = metric
	ts.SortedKeys = []string{"utilization_pct"}
	return ts, nil
}
