package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/cache"
	"github.com/redis/go-redis/v9"
)

// SessionStore implements cache.SessionStore on top of Redis hashes.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a new [SessionStore]. prefix namespaces the keys.
func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "tiktok-auth"
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *SessionStore) redisKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, cache.HashKey(sessionID))
}

// Put stores the token and sets the key expiry to the token lifetime.
func (r *SessionStore) Put(ctx context.Context, sessionID string, tok *ttauth.Token) error {
	if sessionID == "" {
		return cache.ErrEmptySessionID
	}
	key := r.redisKey(sessionID)

	ttl := cache.DefaultTokenTTL
	if tok.ExpiresIn > 0 {
		ttl = tok.TTL(r.now())
		if ttl <= 0 {
			return r.Delete(ctx, sessionID)
		}
	}

	scopeJSON, err := json.Marshal(tok.GrantedScope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	entry := map[string]interface{}{
		"access_token":       tok.AccessToken,
		"refresh_token":      tok.RefreshToken,
		"token_type":         tok.TokenType,
		"open_id":            tok.OpenID,
		"expires_in":         tok.ExpiresIn,
		"refresh_expires_in": tok.RefreshExpiresIn,
		"scope":              string(scopeJSON),
		"scope_returned":     strconv.FormatBool(tok.ScopeReturned),
		"issued_at":          tok.IssuedAt.Unix(),
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, entry)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}

// Get loads the token of a session.
func (r *SessionStore) Get(ctx context.Context, sessionID string) (*ttauth.Token, error) {
	res, err := r.client.HGetAll(ctx, r.redisKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ttauth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token from Redis: %w", err)
	}
	if len(res) == 0 || res["access_token"] == "" {
		return nil, ttauth.ErrTokenNotFound
	}

	expiresIn, err := strconv.ParseInt(res["expires_in"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_in: %w", err)
	}
	issuedAt, err := strconv.ParseInt(res["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt issued_at: %w", err)
	}
	refreshExpiresIn, _ := strconv.ParseInt(res["refresh_expires_in"], 10, 64)
	scopeReturned, _ := strconv.ParseBool(res["scope_returned"])

	tok := &ttauth.Token{
		AccessToken:      res["access_token"],
		RefreshToken:     res["refresh_token"],
		TokenType:        res["token_type"],
		OpenID:           res["open_id"],
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: refreshExpiresIn,
		ScopeReturned:    scopeReturned,
		IssuedAt:         time.Unix(issuedAt, 0),
	}
	if s := res["scope"]; s != "" {
		if err := json.Unmarshal([]byte(s), &tok.GrantedScope); err != nil {
			return nil, fmt.Errorf("corrupt scope: %w", err)
		}
	}
	if !tok.Valid(r.now()) {
		return nil, ttauth.ErrTokenNotFound
	}
	return tok, nil
}

// Delete removes the token of a session.
func (r *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from Redis: %w", err)
	}
	return nil
}

var _ cache.SessionStore = (*SessionStore)(nil)
