package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisIdentityPrefix = "gatekeeper:attempts:identity:"
	redisOriginPrefix   = "gatekeeper:attempts:origin:"
)

// RedisAttemptRepository keeps the failed attempt ledger in sorted sets so that
// several gate instances share counts. Each identity and each origin owns one
// set scored by attempt time in microseconds.
//
// Identity set members are "<attemptID>|<origin>" so ClearAll can remove the
// same attempts from the origin sets.
type RedisAttemptRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisAttemptRepository creates a ledger whose keys expire after retention
// without new attempts
func NewRedisAttemptRepository(client *redis.Client, retention time.Duration) *RedisAttemptRepository {
	return &RedisAttemptRepository{client: client, retention: retention}
}

func identityKey(identity string) string { return redisIdentityPrefix + identity }
func originKey(origin string) string     { return redisOriginPrefix + origin }

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func mapRedisError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", models.ErrStorageUnavailable, op, err)
}

func (r *RedisAttemptRepository) Record(ctx context.Context, identity, origin string, at time.Time) error {
	const op = "redis.Record"

	id := uuid.New().String()
	idKey, orKey := identityKey(identity), originKey(origin)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, idKey, redis.Z{Score: score(at), Member: id + "|" + origin})
		pipe.ZAdd(ctx, orKey, redis.Z{Score: score(at), Member: id})
		if r.retention > 0 {
			pipe.Expire(ctx, idKey, r.retention)
			pipe.Expire(ctx, orKey, r.retention)
		}
		return nil
	})
	return mapRedisError(op, err)
}

func (r *RedisAttemptRepository) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	return r.countSince(ctx, "redis.CountSince", identityKey(identity), since)
}

func (r *RedisAttemptRepository) CountByOriginSince(ctx context.Context, origin string, since time.Time) (int, error) {
	return r.countSince(ctx, "redis.CountByOriginSince", originKey(origin), since)
}

func (r *RedisAttemptRepository) countSince(ctx context.Context, op, key string, since time.Time) (int, error) {
	lower := strconv.FormatInt(since.UnixMicro(), 10)

	count, err := r.client.ZCount(ctx, key, lower, "+inf").Result()
	if err != nil {
		return 0, mapRedisError(op, err)
	}
	return int(count), nil
}

func (r *RedisAttemptRepository) ClearAll(ctx context.Context, identity string) error {
	const op = "redis.ClearAll"

	idKey := identityKey(identity)

	members, err := r.client.ZRange(ctx, idKey, 0, -1).Result()
	if err != nil {
		return mapRedisError(op, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, member := range members {
			id, origin, ok := strings.Cut(member, "|")
			if !ok {
				continue
			}
			pipe.ZRem(ctx, originKey(origin), id)
		}
		pipe.Del(ctx, idKey)
		return nil
	})
	return mapRedisError(op, err)
}

// DeleteBefore trims every ledger set to entries at or after cutoff
func (r *RedisAttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "redis.DeleteBefore"

	upper := "(" + strconv.FormatInt(cutoff.UnixMicro(), 10)
	var removed int64

	for _, prefix := range []string{redisIdentityPrefix, redisOriginPrefix} {
		iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			n, err := r.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", upper).Result()
			if err != nil {
				return removed, mapRedisError(op, err)
			}
			// Origin entries mirror identity entries
			if prefix == redisIdentityPrefix {
				removed += n
			}
		}
		if err := iter.Err(); err != nil {
			return removed, mapRedisError(op, err)
		}
	}

	return removed, nil
}

func (r *RedisAttemptRepository) Ping(ctx context.Context) error {
	return mapRedisError("redis.Ping", r.client.Ping(ctx).Err())
}
