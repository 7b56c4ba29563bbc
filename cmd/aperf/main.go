// Command aperf records Linux host performance data and turns the
// resulting archives into browsable HTML reports.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aperf-project/aperf/internal/pdaerr"
)

var verboseCount int

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aperf",
		Short:         "Record and report Linux host performance data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := resolveLogLevel(verboseCount)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase logging verbosity (stackable: -v, -vv)")
	root.AddCommand(newRecordCmd())
	root.AddCommand(newReportCmd())
	return root
}

// resolveLogLevel maps the stacked -v count to a slog.Level: 0=info,
// 1=debug, 2=trace, more than 2 is an error. log/slog has no trace
// level, so slog.LevelDebug-4 stands in. PDA_LOG_LEVEL overrides
// whatever -v count was given.
func resolveLogLevel(count int) (slog.Level, error) {
	if env := os.Getenv("PDA_LOG_LEVEL"); env != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(env)); err != nil {
			return 0, fmt.Errorf("PDA_LOG_LEVEL: %w", err)
		}
		return level, nil
	}
	switch count {
	case 0:
		return slog.LevelInfo, nil
	case 1:
		return slog.LevelDebug, nil
	case 2:
		return slog.LevelDebug - 4, nil
	default:
		return 0, pdaerr.New(pdaerr.VerboseOption, fmt.Sprintf("-v may be stacked at most twice (got %d)", count))
	}
}
