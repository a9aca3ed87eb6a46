// internal/syncer/scheduler.go
package syncer

import (
	"context"

	"offline-worker/internal/common/database"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/models"
)

// registeredTagsKey is where registered wake-up tags live in Redis so they
// survive worker restarts.
const registeredTagsKey = "sync:registered-tags"

// Scheduler records which tags have a pending deferred wake-up. A
// registration is a durable fact: it outlives the process that created it.
type Scheduler interface {
	Register(ctx context.Context, tag models.OperationTag) error
	Unregister(ctx context.Context, tag models.OperationTag) error
	Registered(ctx context.Context) ([]models.OperationTag, error)
}

// RedisScheduler keeps registered tags in a Redis set.
type RedisScheduler struct {
	redis *database.RedisClient
}

func NewRedisScheduler(redis *database.RedisClient) *RedisScheduler {
	return &RedisScheduler{redis: redis}
}

func (s *RedisScheduler) Register(ctx context.Context, tag models.OperationTag) error {
	return s.redis.Client.SAdd(ctx, registeredTagsKey, string(tag)).Err()
}

func (s *RedisScheduler) Unregister(ctx context.Context, tag models.OperationTag) error {
	return s.redis.Client.SRem(ctx, registeredTagsKey, string(tag)).Err()
}

func (s *RedisScheduler) Registered(ctx context.Context) ([]models.OperationTag, error) {
	members, err := s.redis.Client.SMembers(ctx, registeredTagsKey).Result()
	if err != nil {
		return nil, err
	}
	tags := make([]models.OperationTag, 0, len(members))
	for _, m := range members {
		tags = append(tags, models.OperationTag(m))
	}
	return tags, nil
}

// UnsupportedScheduler models a host without deferred wake-ups. Every
// registration fails; the reconnect path is the only trigger left.
type UnsupportedScheduler struct{}

func (UnsupportedScheduler) Register(ctx context.Context, tag models.OperationTag) error {
	return apperrors.NewSyncRegistrationUnsupportedError(string(tag))
}

func (UnsupportedScheduler) Unregister(ctx context.Context, tag models.OperationTag) error {
	return nil
}

func (UnsupportedScheduler) Registered(ctx context.Context) ([]models.OperationTag, error) {
	return nil, nil
}
