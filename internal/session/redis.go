package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"schooldesk/identity/internal/crypto"
)

const (
	sessionKeyPrefix = "session:"
	userKeyPrefix    = "user_sessions:"
)

// RedisStore is the production session store. Session records expire
// server-side via key TTL; a per-user token set supports bulk revoke.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(token string) string { return sessionKeyPrefix + token }
func userKey(userID string) string   { return userKeyPrefix + userID }

func (r *RedisStore) Create(ctx context.Context, userID string, meta ClientMeta) (string, error) {
	token, err := crypto.NewSessionToken()
	if err != nil {
		return "", err
	}

	now := r.now().UTC()
	sess := Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("session: marshal: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(token), data, r.ttl)
	pipe.SAdd(ctx, userKey(userID), token)
	// The index lives at least as long as the longest-lived session.
	pipe.Expire(ctx, userKey(userID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

func (r *RedisStore) Lookup(ctx context.Context, token string) (*Session, error) {
	val, err := r.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	// Key TTL normally enforces expiry; the stored timestamp is the
	// authority if the record outlives it.
	if !r.now().Before(sess.ExpiresAt) {
		return nil, nil
	}
	return &sess, nil
}

func (r *RedisStore) Revoke(ctx context.Context, token string) error {
	val, err := r.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		// Unreadable record: drop the key anyway.
		return r.client.Del(ctx, sessionKey(token)).Err()
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userKey(sess.UserID), token)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) RevokeAllForUser(ctx context.Context, userID string) error {
	tokens, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, sessionKey(token))
	}
	pipe.Del(ctx, userKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
