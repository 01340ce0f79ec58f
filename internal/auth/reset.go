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

const resetKeyPrefix = "pwreset:"

// ResetStore keeps single-use password-reset tokens in Redis.
type ResetStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResetStore constructs a store. Tokens default to a one hour lifetime.
func NewResetStore(client *redis.Client, ttl time.Duration) *ResetStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetStore{client: client, ttl: ttl}
}

// Issue mints a reset token for userID.
func (s *ResetStore) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetKeyPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// Consume redeems a token exactly once and returns its user id.
func (s *ResetStore) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", shared.ErrUnauthenticated
	}
	userID, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", shared.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}
