package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/interactive"
	"github.com/InstaWP/iwp-mu/internal/state"
)

func newUnlockCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release the update lock regardless of its holder",
		Long: `Unlock deletes the update lock. Use it when a run died while holding the
lock and you do not want to wait for lock_ttl to pass.

Releasing the lock while a run is still active lets a second run start
against the same install directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(cmd, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func runUnlock(cmd *cobra.Command, yes bool) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	lock, err := e.store.GetLock(ctx, state.UpdateLockName)
	if err != nil {
		return fmt.Errorf("failed to read update lock: %w", err)
	}
	if lock == nil {
		_, _ = fmt.Fprintln(out, "Update lock is not held.")
		return nil
	}

	if !yes {
		if !interactive.IsTerminal() {
			return fmt.Errorf("refusing to release the lock without --yes when not running in a terminal")
		}
		expired := ""
		if lock.IsExpired(time.Now()) {
			expired = " (expired)"
		}
		prompter := interactive.NewPrompterWithIO(cmd.InOrStdin(), out)
		if !prompter.Confirm("Release update lock held by %s since %s%s?", lock.Holder, formatTime(lock.AcquiredAt), expired) {
			_, _ = fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := e.store.ForceUnlock(ctx, state.UpdateLockName); err != nil {
		return fmt.Errorf("failed to release update lock: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Released update lock held by %s.\n", lock.Holder)
	return nil
}
