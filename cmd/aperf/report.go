package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/internal/bundler"
	"github.com/aperf-project/aperf/internal/pdaerr"
	"github.com/aperf-project/aperf/internal/rawdata"
	"github.com/aperf-project/aperf/internal/registry"
	"github.com/aperf-project/aperf/internal/rules"
)

func newReportCmd() *cobra.Command {
	var (
		runs    []string
		outName string
		baseRun string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Consume one or more run archives and emit a browsable HTML bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, runs, outName, baseRun)
		},
	}

	cmd.Flags().StringArrayVar(&runs, "run", nil, "run archive directory to include (repeatable)")
	cmd.Flags().StringVar(&outName, "name", "", "output report directory/name (default: generated from time)")
	cmd.Flags().StringVar(&baseRun, "base", "", "base run name for cross-run analytics (default: first --run listed)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReport(cmd *cobra.Command, runDirs []string, outName, baseRun string) error {
	if len(runDirs) == 0 {
		return pdaerr.New(pdaerr.InvalidParams, "report requires at least one --run")
	}
	if outName == "" {
		outName = fmt.Sprintf("aperf_report_%s", time.Now().UTC().Format("20060102_150405"))
	}

	sources := make([]bundler.Source, len(runDirs))
	for i, dir := range runDirs {
		if strings.HasSuffix(dir, ".tar.gz") {
			tmp, err := os.MkdirTemp("", "aperf-report-*")
			if err != nil {
				return pdaerr.Wrap(pdaerr.ReportInput, "create unpack dir", err)
			}
			defer os.RemoveAll(tmp)
			unpacked, err := archive.UnpackTarGz(dir, tmp)
			if err != nil {
				return pdaerr.Wrap(pdaerr.ReportInput, "unpack "+dir, err)
			}
			dir = unpacked
		}
		sources[i] = bundler.Source{Dir: dir}
	}

	// Enabled here only so the profile collector's transform is
	// resolvable for archives that recorded with --profile; report
	// never calls Prepare, so no profiler subprocess is spawned.
	reg := registry.New()
	rawdata.Register(reg, nil, rawdata.ProfileOptions{Enabled: true})

	result, err := bundler.Bundle(sources, reg, rules.DefaultRules(), baseRun, outName)
	if err != nil {
		return err
	}

	printReportSummary(cmd, result)
	return nil
}

func printReportSummary(cmd *cobra.Command, result *bundler.Result) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "report complete: %s\n", result.OutDir)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"bundle", result.OutDir})
	t.AppendRow(table.Row{"tarball", result.TarballPath})
	t.AppendRow(table.Row{"data families", len(result.DataFamilies)})
	if size, err := dirSize(result.OutDir); err == nil {
		t.AppendRow(table.Row{"bundle size", humanize.Bytes(size)})
	}
	t.Render()

	for _, w := range result.Warnings {
		color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), w)
	}
}
