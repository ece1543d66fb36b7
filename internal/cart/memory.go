package cart

import (
	"context"
	"net/http"
	"sync"
)

// MemoryBackend keeps carts in process memory keyed by session id.
type MemoryBackend struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{carts: map[string][]byte{}}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }

// Open implements Backend.
func (b *MemoryBackend) Open(_ http.ResponseWriter, _ *http.Request, sessionID string) Store {
	return &memoryStore{backend: b, key: sessionID}
}

// Raw returns the persisted bytes for a session, mostly for tests.
func (b *MemoryBackend) Raw(sessionID string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	raw, ok := b.carts[sessionID]
	return raw, ok
}

// Put stores raw bytes for a session as if a cart had been saved.
func (b *MemoryBackend) Put(sessionID string, raw []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[sessionID] = append([]byte(nil), raw...)
}

type memoryStore struct {
	backend *MemoryBackend
	key     string
}

func (s *memoryStore) Load(ctx context.Context) (*Cart, error) {
	raw, _ := s.backend.Raw(s.key)
	return decodeStored(ctx, s.backend.Name(), raw), nil
}

func (s *memoryStore) Save(ctx context.Context, c *Cart) error {
	if c.IsEmpty() {
		return s.Clear(ctx)
	}
	raw, err := c.Encode()
	if err != nil {
		return err
	}
	s.backend.Put(s.key, raw)
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.carts, s.key)
	return nil
}
