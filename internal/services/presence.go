package services

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

// PresenceStore tracks which users currently hold an active real-time
// connection. It is backed by a shared Redis set so that presence stays
// correct when the socket layer is scaled across processes: the set, not any
// single instance's connection table, is the source of truth.
type PresenceStore struct {
	rdb *redis.Client
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{rdb: rdb}
}

// Add marks a user online. Adding an already-online user is a no-op.
func (s *PresenceStore) Add(ctx context.Context, userID uint) error {
	return s.rdb.SAdd(ctx, onlineUsersKey, formatUserID(userID)).Err()
}

// Remove marks a user offline and reports whether the user was online.
func (s *PresenceStore) Remove(ctx context.Context, userID uint) (bool, error) {
	n, err := s.rdb.SRem(ctx, onlineUsersKey, formatUserID(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsOnline reports whether a user currently has a connection somewhere.
func (s *PresenceStore) IsOnline(ctx context.Context, userID uint) (bool, error) {
	return s.rdb.SIsMember(ctx, onlineUsersKey, formatUserID(userID)).Result()
}

// Count returns the number of online users.
func (s *PresenceStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.SCard(ctx, onlineUsersKey).Result()
}

// Members returns the ids of all online users.
func (s *PresenceStore) Members(ctx context.Context) ([]uint, error) {
	raw, err := s.rdb.SMembers(ctx, onlineUsersKey).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func formatUserID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
