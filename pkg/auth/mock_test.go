package auth

import (
	"context"
	"image"
	"sync"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/storage"
)

// MockDetector reports fixed regions for every image.
type MockDetector struct {
	mu      sync.Mutex
	Regions []detection.Region
	Calls   int
}

func (m *MockDetector) Detect(img image.Image) detection.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	b := img.Bounds()
	return detection.NewResult(m.Regions, b.Dx(), b.Dy())
}

func (m *MockDetector) Name() string { return "mock" }

func (m *MockDetector) SetRegions(regions ...detection.Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Regions = regions
}

// MockStore wraps a memory store and lets tests inject failures.
type MockStore struct {
	*storage.MemoryStore
	PutErr    error
	ListErr   error
	UpdateErr error
	DeleteErr error
}

func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: storage.NewMemoryStore()}
}

func (m *MockStore) Put(ctx context.Context, rec storage.UserRecord) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	return m.MemoryStore.Put(ctx, rec)
}

func (m *MockStore) List(ctx context.Context) ([]storage.UserRecord, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.MemoryStore.List(ctx)
}

func (m *MockStore) Update(ctx context.Context, userID string, fn func(*storage.UserRecord) error) (*storage.UserRecord, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	return m.MemoryStore.Update(ctx, userID, fn)
}

func (m *MockStore) Delete(ctx context.Context, userID string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	return m.MemoryStore.Delete(ctx, userID)
}
