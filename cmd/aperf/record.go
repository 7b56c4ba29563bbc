package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/internal/pdaerr"
	"github.com/aperf-project/aperf/internal/rawdata"
	"github.com/aperf-project/aperf/internal/registry"
	"github.com/aperf-project/aperf/internal/runtime"
)

func newRecordCmd() *cobra.Command {
	var (
		runName     string
		interval    uint64
		period      uint64
		profile     bool
		frequency   int
		profileJava bool
		javaArgs    []string
		pmuConfig   string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Sample OS counters at a fixed cadence for a bounded window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, recordOptions{
				runName:     runName,
				interval:    interval,
				period:      period,
				profile:     profile,
				frequency:   frequency,
				profileJava: profileJava,
				javaArgs:    javaArgs,
				pmuConfig:   pmuConfig,
			})
		},
	}

	cmd.Flags().StringVar(&runName, "run-name", "", "name for this run (default: generated from host/time)")
	cmd.Flags().Uint64VarP(&interval, "interval", "i", 1, "sampling interval in seconds")
	cmd.Flags().Uint64VarP(&period, "period", "p", 10, "overall recording period in seconds")
	cmd.Flags().BoolVar(&profile, "profile", false, "enable perf profiling alongside collection")
	cmd.Flags().IntVarP(&frequency, "frequency", "F", 99, "perf sampling frequency (Hz)")
	cmd.Flags().BoolVar(&profileJava, "profile-java", false, "enable async-profiler Java profiling")
	cmd.Flags().StringArrayVar(&javaArgs, "profile-java-arg", nil, "extra argument for the Java profiler (repeatable)")
	cmd.Flags().StringVar(&pmuConfig, "pmu-config", "", "path to a PMU event config file")

	return cmd
}

type recordOptions struct {
	runName     string
	interval    uint64
	period      uint64
	profile     bool
	frequency   int
	profileJava bool
	javaArgs    []string
	pmuConfig   string
}

func runRecord(cmd *cobra.Command, opts recordOptions) error {
	params, err := archive.NewInitParams(opts.runName, opts.interval, opts.period)
	if err != nil {
		return pdaerr.Wrap(pdaerr.InvalidParams, "invalid record parameters", err)
	}
	params.StartTime = time.Now()
	params.PerfFrequency = uint32(opts.frequency)
	params.PMUConfig = opts.pmuConfig
	if opts.profile || opts.profileJava {
		params.Profile = map[string]string{}
		if opts.profile {
			params.Profile["perf"] = "enabled"
		}
		if opts.profileJava {
			params.Profile["java"] = "enabled"
		}
	}

	root, err := os.Getwd()
	if err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "getwd", err)
	}

	writer, err := archive.NewWriter(root, params)
	if err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "create run archive", err)
	}
	if err := writer.WriteRunInfo(); err != nil {
		return err
	}

	reg := registry.New()
	rawdata.Register(reg, writer, rawdata.ProfileOptions{
		Enabled:     opts.profile,
		Frequency:   opts.frequency,
		JavaEnabled: opts.profileJava,
		JavaArgs:    opts.javaArgs,
		PMUConfig:   opts.pmuConfig,
	})

	rt := runtime.New(reg, writer, params, runtime.NewRealWaiter(), slog.Default())

	if err := rt.InitCollectors(); err != nil {
		return err
	}
	if err := rt.PrepareDataCollectors(); err != nil {
		return err
	}
	if err := rt.CollectStaticData(); err != nil {
		return err
	}
	if err := rt.CollectDataSerial(); err != nil {
		return err
	}
	if err := rt.End(); err != nil {
		return err
	}

	tarPath := archive.TarballPath(root, params.RunName)
	if err := archive.PackTarGz(writer.Dir(), tarPath); err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "pack run tarball", err)
	}

	printRecordSummary(cmd, params, writer.Dir(), tarPath, rt)
	return nil
}

func printRecordSummary(cmd *cobra.Command, params archive.InitParams, dir, tarPath string, rt *runtime.Runtime) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "record complete: %s\n", params.RunName)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"run", params.RunName})
	t.AppendRow(table.Row{"interval", fmt.Sprintf("%ds", params.Interval)})
	t.AppendRow(table.Row{"period", fmt.Sprintf("%ds", params.Period)})
	t.AppendRow(table.Row{"ticks", len(rt.Ticks())})
	t.AppendRow(table.Row{"archive", dir})
	t.AppendRow(table.Row{"tarball", tarPath})
	if size, err := dirSize(dir); err == nil {
		t.AppendRow(table.Row{"archive size", humanize.Bytes(size)})
	}
	t.Render()

	if errs := rt.TickErrors(); len(errs) > 0 {
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "%d non-fatal collector error(s) during this run\n", len(errs))
	}
}

func dirSize(dir string) (uint64, error) {
	var total uint64
	err := walkDir(dir, func(size int64) { total += uint64(size) })
	return total, err
}
