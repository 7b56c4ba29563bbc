package rawdata

import (
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/internal/registry"
)

// ProfileOptions configures the optional profiling collector.
type ProfileOptions struct {
	Enabled     bool
	Frequency   int
	JavaEnabled bool
	JavaArgs    []string
	PMUConfig   string
}

// Register wires every counter-family collector into reg. Registration
// order is collection order within a tick.
func Register(reg *registry.Registry, writer *archive.Writer, profile ProfileOptions) {
	reg.Register(NewCPUCollector())
	reg.Register(NewProcessStatsCollector(nil))
	reg.Register(NewNumaStatCollector())
	reg.Register(NewMeminfoCollector())
	reg.Register(NewVmstatCollector())
	reg.Register(NewNetstatCollector())
	reg.Register(NewDiskstatsCollector())
	reg.Register(NewInterruptsCollector())
	reg.Register(NewSysctlCollector())
	reg.Register(NewSystemInfoCollector())
	reg.Register(NewKernelConfigCollector())

	if profile.Enabled || profile.JavaEnabled {
		reg.Register(NewProfileCollector(writer, profile.Frequency, profile.JavaEnabled, profile.JavaArgs, profile.PMUConfig))
	}
}
