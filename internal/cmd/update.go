package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/git"
)

func newUpdateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Reinstall the branch head without a version check",
		Long: `Update runs the download, backup, and replace pipeline unconditionally,
reinstalling whatever the tracked branch currently holds. It still takes the
update lock and still rolls back on failure.

If plugin_dir is a git working copy with uncommitted changes, update
refuses to run unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace a git working copy with uncommitted changes")

	return cmd
}

func runUpdate(cmd *cobra.Command, force bool) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if wc := inspectWorkingCopy(e.cfg.PluginDir); wc != nil && wc.Level == git.LevelWarning && !force {
		return fmt.Errorf("%s is a git working copy with uncommitted changes (use --force to replace it)", e.cfg.PluginDir)
	}

	result, err := e.updater.Apply(triggerContext(cmd, "cli:update"))
	return finish(e.out, result, err)
}

// inspectWorkingCopy returns the git state of dir, or nil when git is not
// installed or dir is not the top of a working copy.
func inspectWorkingCopy(dir string) *git.Status {
	checker := newGitChecker()
	if !checker.GitAvailable() {
		return nil
	}
	status := checker.Inspect(dir)
	if !status.IsGitRepo {
		return nil
	}
	return &status
}

// newGitChecker is replaced in tests.
var newGitChecker = git.NewChecker
