package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/state"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed version, last check, lock, and scratch state",
		Long: `Status shows the installed version, the persisted result of the last
check and update, whether the update lock is held, and any scratch entries
left in the scratch directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx := cmd.Context()

	rec, err := e.updater.Record(ctx)
	if err != nil {
		return fmt.Errorf("failed to read update record: %w", err)
	}
	lock, err := e.store.GetLock(ctx, state.UpdateLockName)
	if err != nil {
		return fmt.Errorf("failed to read update lock: %w", err)
	}
	scratch, err := e.updater.Backups().List()
	if err != nil {
		return err
	}

	view := statusView{
		Slug:             e.updater.Slug(),
		PluginDir:        e.cfg.PluginDir,
		InstalledVersion: e.updater.InstalledVersion(),
		Source:           e.cfg.RepoURL + "@" + e.cfg.Branch,
		Record:           rec,
		Lock:             lock,
		Scratch:          scratch,
	}
	if rec != nil {
		next := rec.LastChecked.Add(e.cfg.CheckInterval.Duration)
		view.NextCheck = &next
	}
	view.WorkingCopy = inspectWorkingCopy(e.cfg.PluginDir)

	return e.out.Write(view)
}
