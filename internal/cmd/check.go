package cmd

import (
	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/output"
	"github.com/InstaWP/iwp-mu/internal/update"
)

func newCheckCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check for a newer version and install it",
		Long: `Check compares the installed Version header with the one on the tracked
branch and runs the update when the remote version is newer.

Without --force the check is skipped when the last one is more recent than
check_interval.

Examples:
  iwp-mu check              # Respect the check interval
  iwp-mu check --force      # Check now
  iwp-mu check -o json      # Machine-readable result`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Check even if the interval has not elapsed")

	return cmd
}

func runCheck(cmd *cobra.Command, force bool) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx := triggerContext(cmd, "cli:check")

	var result *update.Result
	if force {
		result, err = e.updater.ForceCheck(ctx)
	} else {
		result, err = e.updater.MaybeCheck(ctx)
	}
	return finish(e.out, result, err)
}

// finish prints whatever result the pipeline produced, then reports err.
func finish(out *output.Writer, result *update.Result, err error) error {
	if result != nil {
		if werr := render(out, resultView{result}, result); werr != nil {
			return werr
		}
	}
	return err
}
