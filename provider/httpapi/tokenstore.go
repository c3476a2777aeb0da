package httpapi

import (
	"context"
	"sync"

	"github.com/goliatone/go-hosted"
)

// MemoryTokenStore keeps the session in process memory. It is the default
// TokenStore; sessions are lost on restart, which matches the behavior of a
// fresh browser profile.
type MemoryTokenStore struct {
	mu      sync.Mutex
	session *hosted.Session
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(ctx context.Context) (*hosted.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, nil
	}
	copied := *m.session
	return &copied, nil
}

func (m *MemoryTokenStore) Save(ctx context.Context, session *hosted.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil {
		m.session = nil
		return nil
	}
	copied := *session
	m.session = &copied
	return nil
}

func (m *MemoryTokenStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
