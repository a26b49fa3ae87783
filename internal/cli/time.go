package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mz-tools/mzprof/internal/pprofenc"
)

func newTimeCmd() *cobra.Command {
	var (
		flags           collectFlags
		durationSeconds uint64
	)

	cmd := &cobra.Command{
		Use:   "time [sql-url]",
		Short: "Profile operator elapsed time",
		Long: `Collect an elapsed-time profile of the replica's dataflow operators.

Without --duration, the profile is a snapshot of the cumulative scheduling
time of every operator since it was created. With --duration, the collection
stays subscribed for that many seconds and the profile covers only the time
spent during the window.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window := time.Duration(durationSeconds) * time.Second
			return runCollect(cmd, args, flags, pprofenc.KindTime, window)
		},
	}

	flags.register(cmd)
	cmd.Flags().Uint64VarP(&durationSeconds, "duration", "d", 0, "Profiling window in seconds (0 = snapshot)")

	return cmd
}
