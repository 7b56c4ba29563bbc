package rawdata

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"golang.org/x/sys/unix"
)

const KernelConfigFileName = "kernel_config"

// KernelConfigRawSample holds every text line of the running kernel's
// build config (CONFIG_* entries and their surrounding comments).
type KernelConfigRawSample struct {
	Lines []string `json:"lines"`
}

// KernelConfigCollector reads /proc/config.gz (or, when that is
// unavailable, /boot/config-<uname -r>) exactly once per run.
type KernelConfigCollector struct{}

func NewKernelConfigCollector() *KernelConfigCollector { return &KernelConfigCollector{} }

func (*KernelConfigCollector) Name() string     { return "kernel_config" }
func (*KernelConfigCollector) FileName() string { return KernelConfigFileName }

func (*KernelConfigCollector) CollectStatic() (any, error) {
	return sampleKernelConfig()
}

func sampleKernelConfig() (KernelConfigRawSample, error) {
	if lines, err := readConfigGz("/proc/config.gz"); err == nil {
		return KernelConfigRawSample{Lines: lines}, nil
	}

	release := "unknown"
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		release = cstring(uts.Release[:])
	}
	path := filepath.Join("/boot", "config-"+release)
	lines, err := readTextLines(path)
	if err != nil {
		return KernelConfigRawSample{}, fmt.Errorf("kernel_config: %w", err)
	}
	return KernelConfigRawSample{Lines: lines}, nil
}

func readConfigGz(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func readTextLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Transform emits the kernel config as Text lines (free-form
// textual snapshots use the Text variant).
func (*KernelConfigCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	if len(raw) == 0 {
		return &aperfdata.Text{}, nil
	}
	samples, err := decodeSamples[KernelConfigRawSample](raw[:1])
	if err != nil {
		return nil, err
	}
	return &aperfdata.Text{Lines: stripBlank(samples[0].Payload.Lines)}, nil
}

func stripBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
