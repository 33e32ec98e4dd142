package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore shares badge claims between instances with SET NX. Claims expire
// after ttl so a crashed assigner never blocks a badge for good.
type ClaimStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClaimStore(client *redis.Client, ttl time.Duration) *ClaimStore {
	return &ClaimStore{client: client, ttl: ttl}
}

func (s *ClaimStore) Claim(ctx context.Context, studentID, badgeID int64) (bool, error) {
	return s.client.SetNX(ctx, s.key(studentID, badgeID), "1", s.ttl).Result()
}

func (s *ClaimStore) Release(ctx context.Context, studentID, badgeID int64) error {
	return s.client.Del(ctx, s.key(studentID, badgeID)).Err()
}

func (s *ClaimStore) key(studentID, badgeID int64) string {
	return "quiz:badge-claim:" + strconv.FormatInt(studentID, 10) + ":" + strconv.FormatInt(badgeID, 10)
}
