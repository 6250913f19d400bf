package session

import (
	"context"
	"sync"
	"time"

	"schooldesk/identity/internal/crypto"
)

// MemoryStore keeps sessions in process memory. Lookups for different
// tokens proceed under a shared read lock; RevokeAllForUser takes the
// write lock, so it is linearizable against concurrent lookups.
type MemoryStore struct {
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	byTok  map[string]Session
	byUser map[string]map[string]struct{}
}

type MemoryStoreConfig struct {
	TTL time.Duration
	Now func() time.Time
}

func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MemoryStore{
		ttl:    cfg.TTL,
		now:    cfg.Now,
		byTok:  make(map[string]Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Create(_ context.Context, userID string, meta ClientMeta) (string, error) {
	token, err := crypto.NewSessionToken()
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	sess := Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTok[token] = sess
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]struct{})
	}
	m.byUser[userID][token] = struct{}{}
	return token, nil
}

func (m *MemoryStore) Lookup(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.byTok[token]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	// Expired records are inert until purged; they still miss.
	if !m.now().Before(sess.ExpiresAt) {
		return nil, nil
	}
	return &sess, nil
}

func (m *MemoryStore) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byTok[token]
	if !ok {
		return nil
	}
	delete(m.byTok, token)
	if tokens := m.byUser[sess.UserID]; tokens != nil {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(m.byUser, sess.UserID)
		}
	}
	return nil
}

func (m *MemoryStore) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token := range m.byUser[userID] {
		delete(m.byTok, token)
	}
	delete(m.byUser, userID)
	return nil
}
