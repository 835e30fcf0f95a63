package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// DeadlineQueue indexes in-progress attempts by deadline for the expiry sweep.
type DeadlineQueue interface {
	Schedule(ctx context.Context, attemptID string, deadline time.Time) error
	Remove(ctx context.Context, attemptID string) error
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
}

const deadlineKey = "assessment:attempt_deadlines"

// RedisDeadlineQueue keeps deadlines in a sorted set scored by unix seconds.
type RedisDeadlineQueue struct {
	Client *redis.Client
	Key    string
}

func NewRedisDeadlineQueue(client *redis.Client) *RedisDeadlineQueue {
	return &RedisDeadlineQueue{Client: client, Key: deadlineKey}
}

func (q *RedisDeadlineQueue) Schedule(ctx context.Context, attemptID string, deadline time.Time) error {
	return q.Client.ZAdd(ctx, q.Key, &redis.Z{
		Score:  float64(deadline.Unix()),
		Member: attemptID,
	}).Err()
}

func (q *RedisDeadlineQueue) Remove(ctx context.Context, attemptID string) error {
	return q.Client.ZRem(ctx, q.Key, attemptID).Err()
}

func (q *RedisDeadlineQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return q.Client.ZRangeByScore(ctx, q.Key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
}

// DBDeadlineQueue reads deadlines straight from the attempts table.
type DBDeadlineQueue struct {
	Attempts *AttemptRepository
}

func NewDBDeadlineQueue(db *gorm.DB) *DBDeadlineQueue {
	return &DBDeadlineQueue{Attempts: NewAttemptRepository(db)}
}

func (q *DBDeadlineQueue) Schedule(context.Context, string, time.Time) error { return nil }

func (q *DBDeadlineQueue) Remove(context.Context, string) error { return nil }

func (q *DBDeadlineQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return q.Attempts.With(q.Attempts.DB.WithContext(ctx)).ListOverdue(now, limit)
}
