package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStageIsTerminal(t *testing.T) {
	tests := []struct {
		stage Stage
		want  bool
	}{
		{StageIdle, false},
		{StageChecking, false},
		{StageUpToDate, true},
		{StageLockFailed, true},
		{StageSyncing, false},
		{StageSuccess, true},
		{StageFailed, true},
		{StageRollingBack, false},
		{StageRolledBack, true},
		{StageRollbackFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			if got := tt.stage.IsTerminal(); got != tt.want {
				t.Errorf("Stage(%s).IsTerminal() = %v, want %v", tt.stage, got, tt.want)
			}
		})
	}
}

func TestStageMutates(t *testing.T) {
	for _, s := range []Stage{StageFetching, StageExtracting, StageValidating, StageBackingUp} {
		if s.Mutates() {
			t.Errorf("Stage(%s).Mutates() = true, want false", s)
		}
	}
	for _, s := range []Stage{StageSyncing, StageVerifying} {
		if !s.Mutates() {
			t.Errorf("Stage(%s).Mutates() = false, want true", s)
		}
	}
}

func TestTriggerTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		tt      TriggerType
		wantErr bool
	}{
		{"plugin valid", TriggerPlugin, false},
		{"theme valid", TriggerTheme, false},
		{"core valid", TriggerCore, false},
		{"empty invalid", "", true},
		{"invalid value", "translation", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tt.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("TriggerType.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTriggerType(t *testing.T) {
	got, err := ParseTriggerType(" Plugin ")
	if err != nil {
		t.Fatalf("ParseTriggerType() error = %v", err)
	}
	if got != TriggerPlugin {
		t.Errorf("ParseTriggerType() = %v, want %v", got, TriggerPlugin)
	}

	if _, err := ParseTriggerType("bogus"); err == nil {
		t.Error("ParseTriggerType(bogus) expected error")
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("24h")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration != 24*time.Hour {
		t.Errorf("Duration = %v, want 24h", d.Duration)
	}

	out, err := NewDuration(5 * time.Minute).MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(out) != "5m0s" {
		t.Errorf("MarshalText() = %s, want 5m0s", out)
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText(soon) expected error")
	}
}

func TestDurationJSON(t *testing.T) {
	var cfg struct {
		TTL Duration `json:"ttl"`
	}
	if err := json.Unmarshal([]byte(`{"ttl": "15s"}`), &cfg); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if cfg.TTL.Duration != 15*time.Second {
		t.Errorf("TTL = %v, want 15s", cfg.TTL.Duration)
	}
	if cfg.TTL.IsZero() {
		t.Error("IsZero() = true, want false")
	}
}
