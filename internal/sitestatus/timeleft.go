package sitestatus

import "fmt"

// TimeLeft is a remaining duration split into display units.
type TimeLeft struct {
	Days    int64 `json:"days" yaml:"days"`
	Hours   int64 `json:"hours" yaml:"hours"`
	Minutes int64 `json:"minutes" yaml:"minutes"`
	Seconds int64 `json:"seconds" yaml:"seconds"`
}

// Breakdown splits secs into days, hours, minutes, and seconds.
// Negative input counts as zero.
func Breakdown(secs int64) TimeLeft {
	if secs <= 0 {
		return TimeLeft{}
	}
	return TimeLeft{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}

// String renders the breakdown as zero-padded units, omitting days when
// there are none.
func (t TimeLeft) String() string {
	if t.Days > 0 {
		return fmt.Sprintf("%02dd %02dh %02dm %02ds", t.Days, t.Hours, t.Minutes, t.Seconds)
	}
	return fmt.Sprintf("%02dh %02dm %02ds", t.Hours, t.Minutes, t.Seconds)
}
