// Package state persists the update bookkeeping shared by every process
// that can trigger an update: the update record, the update lock, and
// cached option values.
package state

import (
	"context"
	"time"
)

// Well-known record, lock, and option keys.
const (
	UpdateRecordKey  = "iwp_mu_update_data"
	UpdateLockName   = "iwp_mu_update_lock"
	SiteStatusOption = "instawp_site_status"
)

// UpdateRecord is the persisted result of the last check and update.
type UpdateRecord struct {
	LastChecked     time.Time  `json:"last_checked" yaml:"last_checked"`
	CurrentVersion  string     `json:"current_version" yaml:"current_version"`
	RemoteVersion   string     `json:"remote_version" yaml:"remote_version"`
	UpdateAvailable bool       `json:"update_available" yaml:"update_available"`
	LastUpdated     *time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

// LockRecord is a held lock row.
type LockRecord struct {
	Name       string    `json:"name" yaml:"name"`
	Holder     string    `json:"holder" yaml:"holder"`
	AcquiredAt time.Time `json:"acquired_at" yaml:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at" yaml:"expires_at"`
}

// IsExpired returns true if the lock has expired at now.
func (l *LockRecord) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// RecordStore reads and writes update records.
type RecordStore interface {
	// GetRecord returns the record stored under key, or nil if none exists.
	GetRecord(ctx context.Context, key string) (*UpdateRecord, error)

	// PutRecord inserts or replaces the record stored under key.
	PutRecord(ctx context.Context, key string, rec *UpdateRecord) error
}

// Locker is a named, expiring, cross-process lock.
type Locker interface {
	// TryLock takes the lock for holder if it is free or expired at now.
	// The check and the write are a single statement.
	TryLock(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error)

	// ExtendLock pushes the expiry of a lock still held by holder.
	// It returns false if holder no longer owns an unexpired lock.
	ExtendLock(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error)

	// Unlock releases the lock if holder owns it.
	Unlock(ctx context.Context, name, holder string) error

	// ForceUnlock deletes the lock regardless of holder.
	ForceUnlock(ctx context.Context, name string) error

	// GetLock returns the lock row, or nil if none exists.
	GetLock(ctx context.Context, name string) (*LockRecord, error)
}

// OptionStore keeps opaque option values.
type OptionStore interface {
	// GetOption returns the value stored under name and whether it exists.
	GetOption(ctx context.Context, name string) ([]byte, bool, error)

	// SetOption inserts or replaces the value stored under name.
	SetOption(ctx context.Context, name string, value []byte) error
}

// Store is the full persistence surface.
type Store interface {
	RecordStore
	Locker
	OptionStore

	// Initialize creates the schema.
	Initialize(ctx context.Context) error

	// Close closes the store.
	Close() error
}

// Open returns the store selected by database: the in-process store for
// ":memory:", otherwise a libsql database. The schema is created.
func Open(ctx context.Context, database string) (Store, error) {
	var store Store
	if database == MemoryDatabase {
		store = NewMemory()
	} else {
		db, err := NewLibSQL(DSN(database))
		if err != nil {
			return nil, err
		}
		store = db
	}

	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
