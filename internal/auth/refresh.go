package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zubair-sh/next-admin/internal/shared"
)

const (
	refreshKeyPrefix = "refresh:"
	refreshIndexKey  = "refresh_user:"
)

// RefreshStore keeps opaque single-use refresh tokens in Redis. Each token
// maps to a user id; a per-user set supports revoking every session at once.
type RefreshStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRefreshStore constructs a store with the given token lifetime.
func NewRefreshStore(client *redis.Client, ttl time.Duration) *RefreshStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RefreshStore{client: client, ttl: ttl}
}

// Issue mints a new refresh token for userID.
func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKeyPrefix+token, userID, s.ttl)
	pipe.SAdd(ctx, refreshIndexKey+userID, token)
	pipe.Expire(ctx, refreshIndexKey+userID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Redeem consumes a token and returns its user id. GETDEL makes redemption
// single-use: a replayed token finds nothing and fails authentication.
func (s *RefreshStore) Redeem(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", shared.ErrUnauthenticated
	}
	userID, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", shared.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("redeem refresh token: %w", err)
	}
	s.client.SRem(ctx, refreshIndexKey+userID, token)
	return userID, nil
}

// Revoke drops a single token. Unknown tokens are a no-op.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	userID, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.client.SRem(ctx, refreshIndexKey+userID, token)
	return nil
}

// RevokeAll invalidates every outstanding refresh token for userID.
func (s *RefreshStore) RevokeAll(ctx context.Context, userID string) error {
	tokens, err := s.client.SMembers(ctx, refreshIndexKey+userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list refresh tokens: %w", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, refreshKeyPrefix+token)
	}
	keys = append(keys, refreshIndexKey+userID)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// TTL exposes the refresh-token lifetime so the handler can set cookie expiry.
func (s *RefreshStore) TTL() time.Duration {
	return s.ttl
}
