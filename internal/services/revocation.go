package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// RevocationStore marks still-cryptographically-valid tokens as unusable
// until their natural expiry. Entries carry a per-key TTL and expire on
// their own; there is no garbage collection to run.
//
// IsRevoked sits on the hot path of every authenticated request and every
// socket handshake, so it is a single Redis EXISTS.
type RevocationStore struct {
	rdb *redis.Client
}

func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb}
}

// Revoke blacklists a token for the given TTL. Revoking the same token again
// is a no-op beyond refreshing the entry. A non-positive TTL means the token
// has already expired naturally and nothing needs to be stored.
func (s *RevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, blacklistPrefix+token, "true", ttl).Err()
}

// IsRevoked reports whether the token has been blacklisted.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
