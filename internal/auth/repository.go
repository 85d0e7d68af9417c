// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// RevocationStore remembers session ids that were signed out before their
// natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisRevocations struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRevocationStore(client redis.UniversalClient) RevocationStore {
	return &redisRevocations{client: client, now: time.Now}
}

// Revoke keeps the marker only as long as the token could still be
// presented.
func (r *redisRevocations) Revoke(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (r *redisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	return exists > 0, nil
}
