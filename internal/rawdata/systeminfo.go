package rawdata

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"golang.org/x/sys/unix"
)

const SystemInfoFileName = "system_info"

// SystemInfoRawSample is a single host-identity snapshot: kernel
// version (uname), logical CPU count, and total memory.
type SystemInfoRawSample struct {
	Values map[string]string `json:"values"`
}

// SystemInfoCollector gathers host-invariant identity data exactly
// once per run.
type SystemInfoCollector struct{}

func NewSystemInfoCollector() *SystemInfoCollector { return &SystemInfoCollector{} }

func (*SystemInfoCollector) Name() string     { return "system_info" }
func (*SystemInfoCollector) FileName() string { return SystemInfoFileName }

func (*SystemInfoCollector) CollectStatic() (any, error) {
	return sampleSystemInfo()
}

func sampleSystemInfo() (SystemInfoRawSample, error) {
	sample := SystemInfoRawSample{Values: make(map[string]string)}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		sample.Values["kernel_release"] = cstring(uts.Release[:])
		sample.Values["kernel_version"] = cstring(uts.Version[:])
		sample.Values["machine"] = cstring(uts.Machine[:])
		sample.Values["os_name"] = cstring(uts.Sysname[:])
	}

	sample.Values["logical_cpus"] = strconv.Itoa(runtime.NumCPU())

	if model := cpuModelName(); model != "" {
		sample.Values["cpu_model"] = model
	}

	var sysinfo unix.Sysinfo_t
	if err := unix.Sysinfo(&sysinfo); err == nil {
		sample.Values["total_ram_bytes"] = strconv.Itoa(int(sysinfo.Totalram) * int(sysinfo.Unit))
	}

	return sample, nil
}

func cstring(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	var sb strings.Builder
	for _, c := range b[:n] {
		sb.WriteByte(byte(c))
	}
	return sb.String()
}

func cpuModelName() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "model name") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

// Transform emits the system-info snapshot into the unnamed key/value
// group, like sysctl.
func (*SystemInfoCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	kv := aperfdata.NewKeyValue()
	if len(raw) == 0 {
		return kv, nil
	}
	samples, err := decodeSamples[SystemInfoRawSample](raw[:1])
	if err != nil {
		return nil, err
	}
	group := kv.Unnamed()
	for k, v := range samples[0].Payload.Values {
		group.KeyValues[k] = v
	}
	return kv, nil
}
