package rawdata

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

const InterruptsFileName = "interrupts"

// InterruptsRawSample is one tick's /proc/interrupts snapshot: for each
// IRQ line, the per-CPU-column count summed across columns (aperf
// tracks interrupt volume per IRQ, not per-CPU affinity).
type InterruptsRawSample struct {
	IRQs map[string]uint64 `json:"irqs"`
}

type InterruptsCollector struct{}

func NewInterruptsCollector() *InterruptsCollector { return &InterruptsCollector{} }

func (*InterruptsCollector) Name() string     { return "interrupts" }
func (*InterruptsCollector) FileName() string { return InterruptsFileName }

func (*InterruptsCollector) CollectData(_ time.Time) (any, error) {
	return sampleInterrupts()
}

func sampleInterrupts() (InterruptsRawSample, error) {
	f, err := os.Open("/proc/interrupts")
	if err != nil {
		return InterruptsRawSample{}, err
	}
	defer f.Close()

	sample := InterruptsRawSample{IRQs: make(map[string]uint64)}
	sc := bufio.NewScanner(f)
	firstLine := true
	var numCPUs int
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		if firstLine {
			numCPUs = len(parts)
			firstLine = false
			continue
		}
		irq := strings.TrimSuffix(parts[0], ":")
		var total uint64
		for i := 1; i < len(parts) && i <= numCPUs; i++ {
			v, err := strconv.ParseUint(parts[i], 10, 64)
			if err != nil {
				break // remaining columns are the IRQ's description, not counts
			}
			total += v
		}
		sample.IRQs[irq] = total
	}
	return sample, sc.Err()
}

// Transform builds a single-series counter metric per IRQ: each IRQ
// line is its own counter, with no further sub-entity split.
func (*InterruptsCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[InterruptsRawSample](raw)
	if err != nil {
		return nil, err
	}
	ts := aperfdata.NewTimeSeries()
	if len(samples) == 0 {
		return ts, nil
	}

	irqSet := make(map[string]bool)
	for _, s := range samples {
		for irq := range s.Payload.IRQs {
			irqSet[irq] = true
		}
	}

	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}

	for irq := range irqSet {
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = float64(s.Payload.IRQs[irq])
		}
		ts.Metrics[irq] = singleCounterMetric(values, times)
	}

	keys := make([]string, 0, len(ts.Metrics))
	for k := range ts.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ts.SortedKeys = keys
	return ts, nil
}
