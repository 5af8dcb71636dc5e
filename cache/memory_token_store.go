package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	ttauth "github.com/pilab-dev/tiktok-auth"
)

// DefaultTokenTTL is used for tokens that carry no expires_in.
const DefaultTokenTTL = time.Hour

// MemorySessionStore implements SessionStore using ttlcache.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *ttauth.Token]
	now   func() time.Time
}

// NewMemorySessionStore creates an in-memory store with automatic cleanup.
func NewMemorySessionStore() *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *ttauth.Token](DefaultTokenTTL),
		ttlcache.WithDisableTouchOnHit[string, *ttauth.Token](),
	)

	go cache.Start()

	return &MemorySessionStore{
		cache: cache,
		now:   time.Now,
	}
}

// Put implements SessionStore.Put.
func (s *MemorySessionStore) Put(_ context.Context, sessionID string, tok *ttauth.Token) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	ttl := DefaultTokenTTL
	if tok.ExpiresIn > 0 {
		ttl = tok.TTL(s.now())
		if ttl <= 0 {
			s.cache.Delete(HashKey(sessionID))
			return nil
		}
	}
	cp := *tok
	s.cache.Set(HashKey(sessionID), &cp, ttl)
	return nil
}

// Get implements SessionStore.Get.
func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*ttauth.Token, error) {
	item := s.cache.Get(HashKey(sessionID))
	if item == nil || item.IsExpired() {
		return nil, ttauth.ErrTokenNotFound
	}
	cp := *item.Value()
	return &cp, nil
}

// Delete implements SessionStore.Delete.
func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.cache.Delete(HashKey(sessionID))
	return nil
}

// Count returns the number of live sessions.
func (s *MemorySessionStore) Count() int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
