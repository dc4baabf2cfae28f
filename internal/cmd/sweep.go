package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove scratch entries left by crashed runs",
		Long: `Sweep deletes downloads, extraction directories, and backups in the
scratch directory that are older than --older-than (default: lock_ttl).
Entries that young cannot belong to a live run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, olderThan)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum age of removed entries (default lock_ttl)")

	return cmd
}

func runSweep(cmd *cobra.Command, olderThan time.Duration) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if olderThan == 0 {
		olderThan = e.cfg.LockTTL.Duration
	}

	result, err := e.updater.Backups().Sweep(olderThan)
	if err != nil {
		return err
	}
	return render(e.out, sweepView{result}, result)
}
