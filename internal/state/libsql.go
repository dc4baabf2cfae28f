package state

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// busyTimeout lets concurrent requests wait for each other's write
// transactions instead of failing with SQLITE_BUSY.
const busyTimeout = "_pragma=busy_timeout(5000)"

// LibSQL implements Store using libsql. Local databases are plain SQLite
// files opened through the modernc driver.
type LibSQL struct {
	db *sql.DB
}

// DSN turns a config value into a libsql URL. Bare paths become file: URLs
// with a busy timeout; anything with a scheme is returned unchanged.
func DSN(database string) string {
	database = strings.TrimSpace(database)
	if strings.Contains(database, "://") {
		return database
	}
	if !strings.HasPrefix(database, "file:") {
		abs, err := filepath.Abs(database)
		if err == nil {
			database = abs
		}
		database = "file:" + database
	}
	if !strings.Contains(database, "_pragma=") {
		sep := "?"
		if strings.Contains(database, "?") {
			sep = "&"
		}
		database += sep + busyTimeout
	}
	return database
}

// NewLibSQL creates a new LibSQL storage
func NewLibSQL(url string) (*LibSQL, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &LibSQL{db: db}, nil
}

// Initialize creates the database schema
func (s *LibSQL) Initialize(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS update_records (
			key TEXT PRIMARY KEY,
			last_checked INTEGER NOT NULL,
			current_version TEXT NOT NULL,
			remote_version TEXT NOT NULL,
			update_available BOOLEAN NOT NULL DEFAULT 0,
			last_updated INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS locks (
			name TEXT PRIMARY KEY,
			holder TEXT NOT NULL,
			acquired_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS options (
			name TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// GetRecord gets the update record stored under key
func (s *LibSQL) GetRecord(ctx context.Context, key string) (*UpdateRecord, error) {
	var (
		lastChecked int64
		lastUpdated sql.NullInt64
		rec         UpdateRecord
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT last_checked, current_version, remote_version,
			   update_available, last_updated
		FROM update_records
		WHERE key = ?
	`, key).Scan(
		&lastChecked, &rec.CurrentVersion, &rec.RemoteVersion,
		&rec.UpdateAvailable, &lastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get update record: %w", err)
	}

	rec.LastChecked = fromMillis(lastChecked)
	if lastUpdated.Valid {
		t := fromMillis(lastUpdated.Int64)
		rec.LastUpdated = &t
	}

	return &rec, nil
}

// PutRecord inserts or replaces the update record stored under key
func (s *LibSQL) PutRecord(ctx context.Context, key string, rec *UpdateRecord) error {
	var lastUpdated sql.NullInt64
	if rec.LastUpdated != nil {
		lastUpdated = sql.NullInt64{Int64: rec.LastUpdated.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_records (
			key, last_checked, current_version, remote_version,
			update_available, last_updated
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			last_checked = excluded.last_checked,
			current_version = excluded.current_version,
			remote_version = excluded.remote_version,
			update_available = excluded.update_available,
			last_updated = excluded.last_updated
	`,
		key, rec.LastChecked.UnixMilli(), rec.CurrentVersion, rec.RemoteVersion,
		rec.UpdateAvailable, lastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to write update record: %w", err)
	}

	return nil
}

// TryLock takes the named lock when no row exists or the existing row has
// expired. The upsert only overwrites an expired row, so two racing
// callers cannot both see RowsAffected == 1.
func (s *LibSQL) TryLock(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO locks (name, holder, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE locks.expires_at <= excluded.acquired_at
	`, name, holder, now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// ExtendLock moves the expiry of a lock still held by holder
func (s *LibSQL) ExtendLock(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE locks
		SET expires_at = ?
		WHERE name = ? AND holder = ? AND expires_at > ?
	`, now.Add(ttl).UnixMilli(), name, holder, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to extend lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// Unlock releases the named lock if holder owns it
func (s *LibSQL) Unlock(ctx context.Context, name, holder string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM locks
		WHERE name = ? AND holder = ?
	`, name, holder)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// ForceUnlock deletes the named lock whoever holds it
func (s *LibSQL) ForceUnlock(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}
	return nil
}

// GetLock gets the named lock row
func (s *LibSQL) GetLock(ctx context.Context, name string) (*LockRecord, error) {
	var (
		acquiredAt, expiresAt int64
		lock                  = &LockRecord{}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, holder, acquired_at, expires_at
		FROM locks
		WHERE name = ?
	`, name).Scan(&lock.Name, &lock.Holder, &acquiredAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	lock.AcquiredAt = fromMillis(acquiredAt)
	lock.ExpiresAt = fromMillis(expiresAt)
	return lock, nil
}

// GetOption gets the option value stored under name
func (s *LibSQL) GetOption(ctx context.Context, name string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM options WHERE name = ?
	`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get option %s: %w", name, err)
	}
	return value, true, nil
}

// SetOption inserts or replaces the option value stored under name
func (s *LibSQL) SetOption(ctx context.Context, name string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO options (name, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, name, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection
func (s *LibSQL) Close() error {
	return s.db.Close()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
