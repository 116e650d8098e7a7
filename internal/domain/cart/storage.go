package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Storage.Read when no cart is persisted for the
// owner.
var ErrNotFound = errors.New("cart not found")

// Storage persists the serialized cart for an owner. Write fully overwrites
// any previous value; Remove deletes it.
type Storage interface {
	Read(ctx context.Context, owner string) ([]byte, error)
	Write(ctx context.Context, owner string, data []byte) error
	Remove(ctx context.Context, owner string) error
}

// MemStorage is an in-process Storage, used in tests and as a fallback when
// no durable backend is configured.
type MemStorage struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

// NewMemStorage creates an empty in-memory storage.
func NewMemStorage() *MemStorage {
	return &MemStorage{carts: make(map[string][]byte)}
}

func (m *MemStorage) Read(_ context.Context, owner string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.carts[owner]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemStorage) Write(_ context.Context, owner string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.carts[owner] = stored
	return nil
}

func (m *MemStorage) Remove(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[owner]; !ok {
		return ErrNotFound
	}
	delete(m.carts, owner)
	return nil
}
