package cmd

import (
	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/types"
	"github.com/InstaWP/iwp-mu/internal/update"
)

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Entry points for host events",
		Long: `Hook subcommands are called by the host site when something happens that
may warrant an update check. They never fail the host request because of
lock contention or an unreachable repository.`,
	}

	cmd.AddCommand(newHookUpgradedCmd())
	cmd.AddCommand(newHookActivatedCmd())
	cmd.AddCommand(newHookCorePageCmd())
	cmd.AddCommand(newHookPageLoadCmd())

	return cmd
}

func newHookUpgradedCmd() *cobra.Command {
	var triggerType string
	var plugin string
	var plugins []string

	cmd := &cobra.Command{
		Use:   "upgraded",
		Short: "Host upgrader finished installing or updating packages",
		Long: `Upgraded forces a check when the companion plugin was among the
installed or updated plugins. Theme and core events are ignored.

Examples:
  iwp-mu hook upgraded --type plugin --plugin instawp-connect/instawp-connect.php
  iwp-mu hook upgraded --type plugin --plugins akismet/akismet.php,instawp-connect/instawp-connect.php`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tt, err := types.ParseTriggerType(triggerType)
			if err != nil {
				return err
			}
			return runHook(cmd, func(u *update.Updater) (*update.Result, error) {
				ev := update.UpgradeEvent{Type: tt, Plugin: plugin, Plugins: plugins}
				return u.OnUpgraderProcessComplete(triggerContext(cmd, "hook:upgraded"), ev)
			})
		},
	}

	cmd.Flags().StringVar(&triggerType, "type", string(types.TriggerPlugin), "Package type: plugin, theme, core")
	cmd.Flags().StringVar(&plugin, "plugin", "", "Plugin file of a single install or update")
	cmd.Flags().StringSliceVar(&plugins, "plugins", nil, "Plugin files of a bulk update")

	_ = cmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"plugin", "theme", "core"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newHookActivatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activated <plugin>",
		Short: "A plugin was activated",
		Long:  `Activated forces a check when the activated plugin is the companion plugin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd, func(u *update.Updater) (*update.Result, error) {
				return u.OnPluginActivated(triggerContext(cmd, "hook:activated"), args[0])
			})
		},
	}
}

func newHookCorePageCmd() *cobra.Command {
	var forceCheck bool

	cmd := &cobra.Command{
		Use:   "core-page",
		Short: "The host's updates page was loaded",
		Long: `Core-page checks for an update if the check interval has elapsed, or
unconditionally with --force-check (the page's own "check again" action).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd, func(u *update.Updater) (*update.Result, error) {
				return u.OnCorePage(triggerContext(cmd, "hook:core-page"), forceCheck)
			})
		},
	}

	cmd.Flags().BoolVar(&forceCheck, "force-check", false, "Check regardless of the interval")

	return cmd
}

func newHookPageLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page-load",
		Short: "A request was served",
		Long:  `Page-load checks for an update only if the check interval has elapsed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd, func(u *update.Updater) (*update.Result, error) {
				return u.MaybeCheck(triggerContext(cmd, "hook:page-load"))
			})
		},
	}
}

// runHook runs fn against a freshly loaded updater. Pipeline failures are
// logged by the updater and reported in the result; they do not fail the
// hook.
func runHook(cmd *cobra.Command, fn func(u *update.Updater) (*update.Result, error)) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	result, err := fn(e.updater)
	if result == nil {
		return err
	}
	return finish(e.out, result, nil)
}
