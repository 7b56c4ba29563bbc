package rawdata

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
)

const SysctlFileName = "sysctl"

// SysctlRawSample is a single flat snapshot of every readable sysctl
// under /proc/sys, keyed by dotted name (e.g. "vm.swappiness").
type SysctlRawSample struct {
	Values map[string]string `json:"values"`
}

// SysctlCollector gathers the full sysctl tree exactly once per run;
// kernel tunables do not change under a recording unless someone
// changes them.
type SysctlCollector struct {
	root string // overridable in tests; defaults to /proc/sys
}

func NewSysctlCollector() *SysctlCollector {
	return &SysctlCollector{root: "/proc/sys"}
}

func (*SysctlCollector) Name() string     { return "sysctl" }
func (*SysctlCollector) FileName() string { return SysctlFileName }

func (c *SysctlCollector) CollectStatic() (any, error) {
	return sampleSysctl(c.root)
}

func sampleSysctl(root string) (SysctlRawSample, error) {
	sample := SysctlRawSample{Values: make(map[string]string)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // permission-denied sysctls are common and not fatal
		}
		if d.IsDir() {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		key := strings.ReplaceAll(rel, string(os.PathSeparator), ".")
		sample.Values[key] = firstLine(b)
		return nil
	})
	if err != nil {
		return SysctlRawSample{}, fmt.Errorf("sysctl: walk %s: %w", root, err)
	}
	return sample, nil
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

// Transform emits every sysctl key/value pair into the single unnamed
// group. Only the first recorded snapshot is used; sysctl is static
// data, collected once.
func (*SysctlCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	kv := aperfdata.NewKeyValue()
	if len(raw) == 0 {
		return kv, nil
	}
	samples, err := decodeSamples[SysctlRawSample](raw[:1])
	if err != nil {
		return nil, err
	}
	group := kv.Unnamed()
	for k, v := range samples[0].Payload.Values {
		group.KeyValues[k] = v
	}
	return kv, nil
}
