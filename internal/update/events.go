package update

import (
	"context"
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/InstaWP/iwp-mu/internal/types"
)

// UpgradeEvent describes a finished install or update run of the host's
// upgrader.
type UpgradeEvent struct {
	Type    types.TriggerType `json:"type" yaml:"type"`
	Plugin  string            `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	Plugins []string          `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// Touches reports whether the event installed or updated plugin.
func (e UpgradeEvent) Touches(plugin string) bool {
	if e.Type != types.TriggerPlugin || plugin == "" {
		return false
	}
	return e.Plugin == plugin || slices.Contains(e.Plugins, plugin)
}

// OnUpgraderProcessComplete forces a check when the companion plugin was
// installed or updated. Other events leave the updater idle.
func (u *Updater) OnUpgraderProcessComplete(ctx context.Context, ev UpgradeEvent) (*Result, error) {
	if !ev.Touches(u.opts.CompanionPlugin) {
		log.WithContext(ctx).WithField("type", ev.Type).Debug("upgrader event does not involve companion plugin")
		return u.idle(), nil
	}
	log.WithContext(ctx).WithField("plugin", u.opts.CompanionPlugin).Info("companion plugin upgraded, checking for update")
	return u.ForceCheck(ctx)
}

// OnPluginActivated forces a check when plugin is the companion plugin.
func (u *Updater) OnPluginActivated(ctx context.Context, plugin string) (*Result, error) {
	if plugin == "" || plugin != u.opts.CompanionPlugin {
		return u.idle(), nil
	}
	log.WithContext(ctx).WithField("plugin", plugin).Info("companion plugin activated, checking for update")
	return u.ForceCheck(ctx)
}

// OnCorePage runs on a load of the host's update-core page. A forced
// refresh bypasses the check interval.
func (u *Updater) OnCorePage(ctx context.Context, forceCheck bool) (*Result, error) {
	if forceCheck {
		return u.ForceCheck(ctx)
	}
	return u.MaybeCheck(ctx)
}

func (u *Updater) idle() *Result {
	now := u.now()
	return &Result{
		Stage:       types.StageIdle,
		FromVersion: u.InstalledVersion(),
		StartedAt:   now,
		FinishedAt:  now,
	}
}
