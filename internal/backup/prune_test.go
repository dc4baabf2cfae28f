package backup

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestManager_Sweep(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, dir := range []string{
		"/scratch/" + BackupPrefix + "old",
		"/scratch/" + ExtractPrefix + "old",
		"/scratch/keep-me",
	} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}

	// Pretend an hour has passed since those entries were created
	later := time.Now().Add(time.Hour)
	manager := NewManager(fs, "/scratch").WithClock(func() time.Time { return later })

	result, err := manager.Sweep(5 * time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if len(result.Deleted) != 2 {
		t.Errorf("Sweep() Deleted count = %v, want 2", len(result.Deleted))
	}
	if result.Kept != 0 {
		t.Errorf("Sweep() Kept = %v, want 0", result.Kept)
	}
	if ok, _ := afero.Exists(fs, "/scratch/keep-me"); !ok {
		t.Error("Sweep() removed an entry it does not own")
	}
}

func TestManager_SweepKeepsFreshEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/scratch/"+BackupPrefix+"fresh", 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	result, err := NewManager(fs, "/scratch").Sweep(5 * time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.Kept != 1 {
		t.Errorf("Sweep() Kept = %v, want 1", result.Kept)
	}
	if len(result.Deleted) != 0 {
		t.Errorf("Sweep() Deleted count = %v, want 0", len(result.Deleted))
	}
}

func TestManager_SweepInvalidAge(t *testing.T) {
	_, err := NewManager(afero.NewMemMapFs(), "/scratch").Sweep(-time.Second)
	if err == nil {
		t.Error("Sweep() expected error for negative age")
	}
}
