package cmd

import (
	"strings"
	"time"

	"github.com/InstaWP/iwp-mu/internal/backup"
	"github.com/InstaWP/iwp-mu/internal/git"
	"github.com/InstaWP/iwp-mu/internal/output"
	"github.com/InstaWP/iwp-mu/internal/sitestatus"
	"github.com/InstaWP/iwp-mu/internal/state"
	"github.com/InstaWP/iwp-mu/internal/update"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

// resultView prints a pipeline result.
type resultView struct {
	*update.Result
}

func (v resultView) String() string {
	r := v.Result
	f := output.Fields{}.
		Add("Stage", r.Stage).
		Add("Installed", r.FromVersion)
	if r.ToVersion != "" && r.ToVersion != r.FromVersion {
		f = f.Add("Remote", r.ToVersion)
	}
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		f = f.Add("Took", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	f = f.Add("Error", r.Error)
	if len(r.CleanupErrors) > 0 {
		f = f.Add("Cleanup", strings.Join(r.CleanupErrors, "; "))
	}
	return f.String()
}

// statusView is the output of the status command.
type statusView struct {
	Slug             string              `json:"slug" yaml:"slug"`
	PluginDir        string              `json:"plugin_dir" yaml:"plugin_dir"`
	InstalledVersion string              `json:"installed_version" yaml:"installed_version"`
	Source           string              `json:"source" yaml:"source"`
	Record           *state.UpdateRecord `json:"record,omitempty" yaml:"record,omitempty"`
	NextCheck        *time.Time          `json:"next_check,omitempty" yaml:"next_check,omitempty"`
	Lock             *state.LockRecord   `json:"lock,omitempty" yaml:"lock,omitempty"`
	Scratch          []backup.Info       `json:"scratch" yaml:"scratch"`
	WorkingCopy      *git.Status         `json:"working_copy,omitempty" yaml:"working_copy,omitempty"`
}

func (v statusView) String() string {
	f := output.Fields{}.
		Add("Plugin", v.Slug).
		Add("Directory", v.PluginDir).
		Add("Installed", v.InstalledVersion).
		Add("Source", v.Source)

	if v.Record == nil {
		f = f.Add("Last check", "never")
	} else {
		f = f.Add("Last check", formatTime(v.Record.LastChecked)).
			Add("Remote", v.Record.RemoteVersion).
			Add("Update available", v.Record.UpdateAvailable)
		if v.Record.LastUpdated != nil {
			f = f.Add("Last updated", formatTime(*v.Record.LastUpdated))
		}
	}
	if v.NextCheck != nil {
		f = f.Add("Next check", formatTime(*v.NextCheck))
	}

	if v.Lock == nil {
		f = f.Add("Lock", "free")
	} else {
		f = f.Add("Lock", "held by "+v.Lock.Holder+" until "+formatTime(v.Lock.ExpiresAt))
	}

	if v.WorkingCopy != nil {
		wc := v.WorkingCopy.CurrentBranch
		if v.WorkingCopy.Head != "" {
			wc += " (" + v.WorkingCopy.Head + ")"
		}
		f = f.Add("Git", wc+": "+v.WorkingCopy.Message)
	}

	lines := []string{f.String()}
	if len(v.Scratch) > 0 {
		lines = append(lines, "", "Scratch entries:")
		for _, info := range v.Scratch {
			lines = append(lines, "  "+info.Kind+"\t"+info.Path+"\t"+formatTime(info.CreatedAt))
		}
	}
	return strings.Join(lines, "\n")
}

// siteStatusView is the output of the site-status command.
type siteStatusView struct {
	sitestatus.Status `yaml:",inline"`
	TimeLeft          sitestatus.TimeLeft `json:"time_left" yaml:"time_left"`
}

func (v siteStatusView) String() string {
	return output.Fields{}.
		Add("Type", v.Type).
		Add("Status", v.CurrentStatus).
		Add("Time left", v.TimeLeft).
		String()
}

// sweepView is the output of the sweep command.
type sweepView struct {
	*backup.SweepResult
}

func (v sweepView) String() string {
	if len(v.Deleted) == 0 {
		return "No stale scratch entries."
	}
	lines := make([]string, 0, len(v.Deleted)+1)
	for _, info := range v.Deleted {
		lines = append(lines, "Removed "+info.Kind+" "+info.Path)
	}
	return strings.Join(lines, "\n")
}
