// Package cli implements the mzprof command surface.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mz-tools/mzprof/pkg/version"
)

var (
	flagLogLevel string
	flagQuiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "mzprof",
	Short: "mzprof - pprof profiles for Materialize dataflows",
	Long: `Profile the dataflows running on a Materialize cluster replica.

mzprof subscribes to the replica's introspection relations, reconstructs the
operator hierarchy into call stacks, and writes a standard pprof artifact
that flame-graph viewers (go tool pprof, speedscope, pprof web UI) can open.

Examples:
  # Snapshot of cumulative operator time
  mzprof time postgres://materialize@localhost:6875/materialize --cluster default --replica r1

  # Time spent during a 30s window
  mzprof time postgres://materialize@localhost:6875/materialize --cluster default --replica r1 --duration 30

  # Current arrangement memory usage
  mzprof size postgres://materialize@localhost:6875/materialize --cluster default --replica r1`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")

	rootCmd.AddCommand(newTimeCmd())
	rootCmd.AddCommand(newSizeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("mzprof version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command under a signal-aware context: an interrupt
// cancels the collection, which closes the live subscriptions before exit.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
