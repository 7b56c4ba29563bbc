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

const NetstatFileName = "netstat"

// NetstatCollector samples /proc/net/netstat once per tick. That file
// pairs a header line of field names with a following line of values,
// repeated once per protocol group ("TcpExt:", "IpExt:"); fields are
// flattened into "<group><name>" keys (e.g. "TcpExtListenOverflows").
type NetstatCollector struct{}

func NewNetstatCollector() *NetstatCollector { return &NetstatCollector{} }

func (*NetstatCollector) Name() string     { return "netstat" }
func (*NetstatCollector) FileName() string { return NetstatFileName }

func (*NetstatCollector) CollectData(_ time.Time) (any, error) {
	return parseNetstatFile("/proc/net/netstat")
}

func parseNetstatFile(path string) (VmstatRawSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return VmstatRawSample{}, err
	}
	defer f.Close()

	sample := VmstatRawSample{Fields: make(map[string]uint64)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		header := strings.Fields(sc.Text())
		if len(header) == 0 {
			continue
		}
		group := strings.TrimSuffix(header[0], ":")
		names := header[1:]

		if !sc.Scan() {
			break
		}
		values := strings.Fields(sc.Text())
		if len(values) == 0 {
			continue
		}
		values = values[1:] // drop the repeated group label

		for i, name := range names {
			if i >= len(values) {
				break
			}
			v, err := strconv.ParseUint(values[i], 10, 64)
			if err != nil {
				continue // netstat carries the occasional non-numeric field; skip rather than fail the whole tick
			}
			sample.Fields[group+name] = v
		}
	}
	if err := sc.Err(); err != nil {
		return VmstatRawSample{}, fmt.Errorf("netstat: scan: %w", err)
	}
	return sample, nil
}

// Transform applies the same flat counter-field treatment vmstat uses.
func (*NetstatCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	return transformFieldCounters(raw)
}
