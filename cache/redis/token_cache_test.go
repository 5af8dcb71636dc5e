package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/cache"
	"github.com/pilab-dev/tiktok-auth/cache/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*redis.SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewSessionStore(client, "test"), mr
}

func TestSessionStore_PutGet(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	tok := &ttauth.Token{
		AccessToken:   "act.redis1234567890abcdef",
		RefreshToken:  "rft.redis",
		ExpiresIn:     3600,
		OpenID:        "o1",
		GrantedScope:  []string{"user.info.basic", "video.list"},
		ScopeReturned: true,
		IssuedAt:      time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.Put(ctx, "session-1", tok))

	got, err := store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, got.AccessToken)
	assert.Equal(t, tok.RefreshToken, got.RefreshToken)
	assert.Equal(t, tok.GrantedScope, got.GrantedScope)
	assert.True(t, got.ScopeReturned)
	assert.Equal(t, tok.IssuedAt.Unix(), got.IssuedAt.Unix())

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "session-1")
	ttl := mr.TTL(keys[0])
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)
}

func TestSessionStore_Expiry(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s", &ttauth.Token{AccessToken: "act.x", ExpiresIn: 60, IssuedAt: time.Now()}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s")
	assert.ErrorIs(t, err, ttauth.ErrTokenNotFound)
}

func TestSessionStore_OverwriteAndDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s", &ttauth.Token{AccessToken: "act.one", RefreshToken: "rft.one", ExpiresIn: 60, IssuedAt: time.Now()}))
	require.NoError(t, store.Put(ctx, "s", &ttauth.Token{AccessToken: "act.two", ExpiresIn: 60, IssuedAt: time.Now()}))

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "act.two", got.AccessToken)
	assert.Empty(t, got.RefreshToken)

	bound := cache.Bind(store, "s")
	require.NoError(t, bound.Clear(ctx))
	_, err = bound.Load(ctx)
	assert.ErrorIs(t, err, ttauth.ErrTokenNotFound)
}

func TestSessionStore_EmptySessionID(t *testing.T) {
	store, _ := newStore(t)
	err := store.Put(context.Background(), "", &ttauth.Token{AccessToken: "act.x"})
	assert.ErrorIs(t, err, cache.ErrEmptySessionID)
}
