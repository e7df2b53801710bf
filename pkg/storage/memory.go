package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]UserRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]UserRecord)}
}

// Get returns a copy of the record for userID.
func (m *MemoryStore) Get(_ context.Context, userID string) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := rec.Clone()
	return &out, nil
}

// Put creates or replaces a record.
func (m *MemoryStore) Put(_ context.Context, rec UserRecord) error {
	if err := ValidateUserID(rec.UserID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec.Clone()
	return nil
}

// List returns copies of all records ordered by user id.
func (m *MemoryStore) List(_ context.Context) ([]UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]UserRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec.Clone())
	}
	sortRecords(records)
	return records, nil
}

// Update applies fn to the record under the write lock.
func (m *MemoryStore) Update(_ context.Context, userID string, fn func(*UserRecord) error) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	rec = rec.Clone()
	if err := fn(&rec); err != nil {
		return nil, err
	}
	rec.UserID = userID
	m.records[userID] = rec

	out := rec.Clone()
	return &out, nil
}

// Delete removes a record.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[userID]; !ok {
		return ErrUserNotFound
	}
	delete(m.records, userID)
	return nil
}
