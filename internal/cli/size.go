package cli

import (
	"github.com/spf13/cobra"

	"github.com/mz-tools/mzprof/internal/pprofenc"
)

func newSizeCmd() *cobra.Command {
	var flags collectFlags

	cmd := &cobra.Command{
		Use:   "size [sql-url]",
		Short: "Profile arrangement memory usage",
		Long: `Collect a memory profile of the replica's dataflow operators.

The profile reflects the current heap and batcher size of every arrangement,
attributed to the operator that maintains it. Size profiles are always
point-in-time snapshots.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, args, flags, pprofenc.KindSize, 0)
		},
	}

	flags.register(cmd)

	return cmd
}
