package state

import (
	"context"
	"sync"
	"time"
)

// MemoryDatabase is the database value that selects the in-process store.
const MemoryDatabase = ":memory:"

// Memory implements Store in process memory. Locks taken through it only
// serialize callers that share the same Memory value.
type Memory struct {
	mu      sync.Mutex
	records map[string]UpdateRecord
	locks   map[string]LockRecord
	options map[string][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]UpdateRecord),
		locks:   make(map[string]LockRecord),
		options: make(map[string][]byte),
	}
}

// Initialize does nothing; the maps are ready after NewMemory
func (m *Memory) Initialize(ctx context.Context) error { return nil }

// Close does nothing
func (m *Memory) Close() error { return nil }

// GetRecord gets a copy of the update record stored under key
func (m *Memory) GetRecord(ctx context.Context, key string) (*UpdateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	if rec.LastUpdated != nil {
		t := *rec.LastUpdated
		rec.LastUpdated = &t
	}
	return &rec, nil
}

// PutRecord stores a copy of rec under key
func (m *Memory) PutRecord(ctx context.Context, key string, rec *UpdateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	if rec.LastUpdated != nil {
		t := *rec.LastUpdated
		stored.LastUpdated = &t
	}
	m.records[key] = stored
	return nil
}

// TryLock takes the named lock when it is free or expired
func (m *Memory) TryLock(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, ok := m.locks[name]; ok && !lock.IsExpired(now) {
		return false, nil
	}
	m.locks[name] = LockRecord{Name: name, Holder: holder, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return true, nil
}

// ExtendLock moves the expiry of a lock still held by holder
func (m *Memory) ExtendLock(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[name]
	if !ok || lock.Holder != holder || lock.IsExpired(now) {
		return false, nil
	}
	lock.ExpiresAt = now.Add(ttl)
	m.locks[name] = lock
	return true, nil
}

// Unlock releases the named lock if holder owns it
func (m *Memory) Unlock(ctx context.Context, name, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, ok := m.locks[name]; ok && lock.Holder == holder {
		delete(m.locks, name)
	}
	return nil
}

// ForceUnlock drops the named lock whoever holds it
func (m *Memory) ForceUnlock(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, name)
	return nil
}

// GetLock gets the named lock
func (m *Memory) GetLock(ctx context.Context, name string) (*LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[name]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

// GetOption gets a copy of the option value stored under name
func (m *Memory) GetOption(ctx context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.options[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// SetOption stores a copy of value under name
func (m *Memory) SetOption(ctx context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.options[name] = append([]byte(nil), value...)
	return nil
}
