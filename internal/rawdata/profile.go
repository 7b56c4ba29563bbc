package rawdata

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aperf-project/aperf/internal/aperfdata"
	"github.com/aperf-project/aperf/internal/archive"
	"github.com/aperf-project/aperf/pkg/types"
)

const ProfileFileName = "profile"

// ProfileRawSample records where a profiling subprocess's output
// artifacts landed, for Transform to turn into Graph entries.
type ProfileRawSample struct {
	Group     string `json:"group"` // "perf", "flamegraphs", or "java"
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes uint64 `json:"size_bytes"`
}

// ProfileCollector drives the perf/flamegraph/async-profiler child
// processes a record run may opt into. It implements Preparer (spawn)
// and Closer (join) rather than PeriodicSampler: profiling runs for
// the whole record window, not once per tick.
type ProfileCollector struct {
	writer      *archive.Writer
	frequency   int
	javaArgs    []string
	javaEnabled bool
	pmuConfig   string

	perfCmd *exec.Cmd
	javaCmd *exec.Cmd
	perfOut string
	javaOut string
}

func NewProfileCollector(writer *archive.Writer, frequency int, javaEnabled bool, javaArgs []string, pmuConfig string) *ProfileCollector {
	return &ProfileCollector{
		writer:      writer,
		frequency:   frequency,
		javaEnabled: javaEnabled,
		javaArgs:    javaArgs,
		pmuConfig:   pmuConfig,
	}
}

func (*ProfileCollector) Name() string     { return "profile" }
func (*ProfileCollector) FileName() string { return ProfileFileName }

// Prepare spawns `perf record` (and, if requested, async-profiler)
// writing straight into the run's profiles/ subtree.
func (c *ProfileCollector) Prepare() error {
	c.perfOut = c.writer.ProfileArtifactPath("perf", "perf.data")
	args := []string{"record", "-F", fmt.Sprintf("%d", c.frequency), "-o", c.perfOut, "-a", "-g"}
	if c.pmuConfig != "" {
		args = append(args, "-e", c.pmuConfig)
	}
	c.perfCmd = exec.Command("perf", args...)
	c.perfCmd.Stdout = os.Stdout
	c.perfCmd.Stderr = os.Stderr
	if err := c.perfCmd.Start(); err != nil {
		return fmt.Errorf("profile: start perf record: %w", err)
	}

	if c.javaEnabled {
		c.javaOut = c.writer.ProfileArtifactPath("java", "profile.html")
		args := append([]string{"-e", "-o", "flamegraph", "-f", c.javaOut}, c.javaArgs...)
		c.javaCmd = exec.Command("asprof", args...)
		c.javaCmd.Stdout = os.Stdout
		c.javaCmd.Stderr = os.Stderr
		if err := c.javaCmd.Start(); err != nil {
			return fmt.Errorf("profile: start async-profiler: %w", err)
		}
	}
	return nil
}

// Close signals both subprocesses to stop, waits for them to exit,
// renders the flamegraph SVG from the raw perf recording, and appends
// every artifact actually produced to the archive so Transform has
// something to turn into Graph entries.
func (c *ProfileCollector) Close() error {
	if c.perfCmd != nil && c.perfCmd.Process != nil {
		_ = c.perfCmd.Process.Signal(os.Interrupt)
		_ = c.perfCmd.Wait()
	}
	if c.javaCmd != nil && c.javaCmd.Process != nil {
		_ = c.javaCmd.Process.Signal(os.Interrupt)
		_ = c.javaCmd.Wait()
	}
	if c.perfCmd == nil {
		return nil
	}

	if err := RecordArtifact(c.writer, "perf", "perf.data", c.perfOut); err != nil {
		return err
	}

	svg := c.writer.ProfileArtifactPath("flamegraphs", "flamegraph.svg")
	if err := renderFlamegraph(context.Background(), c.perfOut, svg); err != nil {
		return err
	}
	if _, err := os.Stat(svg); err == nil {
		if err := RecordArtifact(c.writer, "flamegraphs", "flamegraph.svg", svg); err != nil {
			return err
		}
	}

	if c.javaCmd != nil {
		if err := RecordArtifact(c.writer, "java", "profile.html", c.javaOut); err != nil {
			return err
		}
	}
	return nil
}

// renderFlamegraph shells out to `perf script` piped through the
// standard stackcollapse/flamegraph.pl toolchain, if present on PATH.
func renderFlamegraph(ctx context.Context, perfData, svgOut string) error {
	if _, err := exec.LookPath("flamegraph.pl"); err != nil {
		return nil // flamegraph rendering is opportunistic, not a hard dependency
	}
	script := exec.CommandContext(ctx, "perf", "script", "-i", perfData)
	collapse := exec.CommandContext(ctx, "stackcollapse-perf.pl")
	render := exec.CommandContext(ctx, "flamegraph.pl")

	var err error
	collapse.Stdin, err = script.StdoutPipe()
	if err != nil {
		return err
	}
	render.Stdin, err = collapse.StdoutPipe()
	if err != nil {
		return err
	}
	out, err := os.Create(svgOut)
	if err != nil {
		return err
	}
	defer out.Close()
	render.Stdout = out

	for _, cmd := range []*exec.Cmd{render, collapse, script} {
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("profile: start %s: %w", cmd.Path, err)
		}
	}
	for _, cmd := range []*exec.Cmd{script, collapse, render} {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("profile: %s: %w", cmd.Path, err)
		}
	}
	return nil
}

// RecordArtifact appends one produced artifact's location to the
// archive. Called directly by record's profile-teardown path rather
// than through the periodic tick loop.
func RecordArtifact(writer *archive.Writer, group, name, path string) error {
	info, err := os.Stat(path)
	var size uint64
	if err == nil {
		size = uint64(info.Size())
	}
	return writer.Append(ProfileFileName, time.Now(), ProfileRawSample{
		Group: group, Name: name, Path: path, SizeBytes: size,
	})
}

// Transform groups recorded profile artifacts into Graph groups: file
// paths plus, where known, file sizes.
func (*ProfileCollector) Transform(raw []archive.RawSample) (aperfdata.AperfData, error) {
	samples, err := decodeSamples[ProfileRawSample](raw)
	if err != nil {
		return nil, err
	}
	graph := aperfdata.NewGraph()
	for _, s := range samples {
		p := s.Payload
		grp, ok := graph.GraphGroups[p.Group]
		if !ok {
			grp = &aperfdata.GraphGroup{GroupName: p.Group, Graphs: make(map[string]*aperfdata.GraphFile)}
			graph.GraphGroups[p.Group] = grp
		}
		size := types.Bytes(p.SizeBytes)
		grp.Graphs[p.Name] = &aperfdata.GraphFile{
			GraphName: p.Name,
			GraphPath: filepath.ToSlash(p.Path),
			GraphSize: &size,
		}
	}
	return graph, nil
}
