// Package bundler walks one or more archives, runs every counter's
// transform and the analytics engine over the result, and writes a
// self-contained, browsable HTML bundle plus its tar.gz sibling.
package bundler

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/internal/pdaerr"
	"github.com/aperf-project/aperf/internal/registry"
	"github.com/aperf-project/aperf/internal/rules"
)

//go:embed assets/index.html assets/index.css assets/index.js assets/plotly.min.js
var staticAssets embed.FS

// Source is one named archive directory to fold into the report. Stems
// must be unique across all sources.
type Source struct {
	// Name is the run name under which this archive's data appears in
	// every ProcessedData (defaults to the reader's RunName if empty).
	Name string
	Dir  string
}

// Result summarizes what the bundler produced, for CLI reporting.
type Result struct {
	OutDir       string
	TarballPath  string
	DataFamilies []string
	Warnings     []string
}

// Bundle loads every source archive, transforms its collectors into
// AperfData, assembles ProcessedData per data family across all runs,
// evaluates the analytics engine, and writes the report bundle to
// outDir.
func Bundle(sources []Source, reg *registry.Registry, ruleSet []rules.Rule, baseRun, outDir string) (*Result, error) {
	if err := checkUniqueStems(sources); err != nil {
		return nil, err
	}

	type runData struct {
		name string
		byCollector map[string]aperfdata.AperfData
	}
	var runs []runData
	var warnings []string

	for _, src := range sources {
		reader, err := archive.OpenReader(src.Dir)
		if err != nil {
			return nil, pdaerr.Wrap(pdaerr.ReportInput, "open archive", err)
		}
		name := src.Name
		if name == "" {
			name = reader.RunName()
		}
		if _, err := reader.ReadRunInfo(); err != nil {
			return nil, pdaerr.Wrap(pdaerr.ReportInput, "load run_info", err).WithRun(name)
		}

		collectors, err := reader.Collectors()
		if err != nil {
			return nil, pdaerr.Wrap(pdaerr.ReportInput, "list collectors", err).WithRun(name)
		}

		byCollector := make(map[string]aperfdata.AperfData, len(collectors))
		for _, fileName := range collectors {
			transformer, ok := lookupTransformer(reg, fileName)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("run %s: no registered transform for %s, skipped", name, fileName))
				continue
			}
			samples, err := reader.ReadCollector(fileName)
			if err != nil {
				return nil, pdaerr.Wrap(pdaerr.ReportInput, "read collector", err).WithRun(name).WithCollector(fileName)
			}
			data, err := transformer.Transform(samples)
			if err != nil {
				terr := pdaerr.Wrap(pdaerr.Transform, "data family skipped", err).WithRun(name).WithCollector(fileName)
				warnings = append(warnings, terr.Error())
				continue
			}
			byCollector[fileName] = data
		}
		runs = append(runs, runData{name: name, byCollector: byCollector})
	}

	if baseRun == "" && len(runs) > 0 {
		baseRun = runs[0].name // default: the first run listed
	}

	families := make(map[string]*aperfdata.ProcessedData)
	var familyOrder []string
	for _, r := range runs {
		for fileName, data := range r.byCollector {
			pd, ok := families[fileName]
			if !ok {
				pd = aperfdata.NewProcessedData(fileName)
				families[fileName] = pd
				familyOrder = append(familyOrder, fileName)
			}
			pd.Put(r.name, data)
		}
	}
	sort.Strings(familyOrder)

	allFindings := aperfdata.NewDataFindings()
	ctx := rules.Context{BaseRun: baseRun}
	for _, name := range familyOrder {
		findings := rules.Evaluate(ctx, ruleSet, families[name])
		for run, rf := range findings.PerRunFindings {
			allFindings.PerRunFindings[run] = append(allFindings.PerRunFindings[run], rf...)
		}
	}

	if err := writeBundle(outDir, families, familyOrder, allFindings, sources); err != nil {
		return nil, err
	}

	tarPath := outDir + ".tar.gz"
	if err := archive.PackTarGz(outDir, tarPath); err != nil {
		return nil, pdaerr.Wrap(pdaerr.ArchiveIO, "pack report tarball", err)
	}

	return &Result{OutDir: outDir, TarballPath: tarPath, DataFamilies: familyOrder, Warnings: warnings}, nil
}

func checkUniqueStems(sources []Source) error {
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		stem := s.Name
		if stem == "" {
			stem = filepath.Base(filepath.Clean(s.Dir))
		}
		if seen[stem] {
			return pdaerr.New(pdaerr.ReportInput, fmt.Sprintf("duplicate run stem %q across report inputs", stem))
		}
		seen[stem] = true
	}
	return nil
}

func lookupTransformer(reg *registry.Registry, fileName string) (registry.Transformer, bool) {
	for _, c := range reg.All() {
		if c.FileName() != fileName {
			continue
		}
		t, ok := c.(registry.Transformer)
		return t, ok
	}
	return nil, false
}

func writeBundle(outDir string, families map[string]*aperfdata.ProcessedData, order []string, findings *aperfdata.DataFindings, sources []Source) error {
	if err := os.MkdirAll(filepath.Join(outDir, "data", "archive"), 0o755); err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "create report data dir", err)
	}

	if err := copyStatic(outDir); err != nil {
		return err
	}

	for _, name := range order {
		b, err := json.Marshal(families[name])
		if err != nil {
			return pdaerr.Wrap(pdaerr.ArchiveIO, "marshal "+name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, "data", name+".json"), b, 0o644); err != nil {
			return pdaerr.Wrap(pdaerr.ArchiveIO, "write "+name+".json", err)
		}
	}

	fb, err := json.Marshal(findings)
	if err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "marshal findings", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "data", "findings.json"), fb, 0o644); err != nil {
		return pdaerr.Wrap(pdaerr.ArchiveIO, "write findings.json", err)
	}

	for _, src := range sources {
		stem := src.Name
		if stem == "" {
			stem = filepath.Base(filepath.Clean(src.Dir))
		}
		dst := filepath.Join(outDir, "data", "archive", stem)
		if err := copyDir(src.Dir, dst); err != nil {
			return pdaerr.Wrap(pdaerr.ArchiveIO, "copy archive into bundle", err).WithRun(stem)
		}
	}
	return nil
}

func copyStatic(outDir string) error {
	entries := []string{"index.html", "index.css", "index.js", "plotly.min.js"}
	for _, name := range entries {
		b, err := staticAssets.ReadFile(filepath.Join("assets", name))
		if err != nil {
			return fmt.Errorf("bundler: read embedded %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, name), b, 0o644); err != nil {
			return pdaerr.Wrap(pdaerr.ArchiveIO, "write "+name, err)
		}
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
