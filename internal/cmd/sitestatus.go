package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/sitestatus"
)

func newSiteStatusCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "site-status",
		Short: "Show the site's plan and remaining time",
		Long: `Site-status prints the site type, status, and remaining lifetime reported
by the status API. The API is polled at most once per status_cache_ttl; in
between, the remaining time counts down from the stored copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSiteStatus(cmd, refresh)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Poll the status API now")

	return cmd
}

func runSiteStatus(cmd *cobra.Command, refresh bool) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if e.cfg.SiteURL == "" {
		return fmt.Errorf("site_url is not set in the config")
	}

	svc := newSiteStatusService(e.cfg, e.store)
	ctx := triggerContext(cmd, "cli:site-status")

	var status sitestatus.Status
	if refresh {
		status, err = svc.Refresh(ctx)
	} else {
		status, err = svc.Get(ctx)
	}
	if err != nil {
		return err
	}

	return e.out.Write(siteStatusView{Status: status, TimeLeft: status.TimeLeft()})
}
