package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "carnumbers"

// CacheService caches derived per-guild data. Values are stored under the
// guild's generation; InvalidateTenantCache advances it, so a value computed
// from a store read that raced a mutation lands under a generation nobody
// reads again. A miss is reported with ok=false and a nil error.
type CacheService interface {
	// Generation returns the guild's current generation. Read it before
	// reading the store.
	Generation(ctx context.Context, guildID int64) (int64, error)
	GetAvailable(ctx context.Context, guildID, gen int64) (numbers []int, ok bool, err error)
	SetAvailable(ctx context.Context, guildID, gen int64, numbers []int, ttl time.Duration) error

	// InvalidateTenantCache advances the guild's generation.
	InvalidateTenantCache(ctx context.Context, guildID int64) error

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient builds a client for addr, accepting redis:// and rediss:// URLs.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

func NewRedisCacheService(client *redis.Client, logger *zap.Logger) CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis ping failed on initialization", zap.Error(err))
	}
	return &redisCacheService{client: client, logger: logger}
}

func availableKey(guildID, gen int64) string {
	return fmt.Sprintf("%s:available:%d:%d", keyPrefix, guildID, gen)
}

func generationKey(guildID int64) string {
	return fmt.Sprintf("%s:gen:%d", keyPrefix, guildID)
}

func (r *redisCacheService) Generation(ctx context.Context, guildID int64) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(guildID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *redisCacheService) GetAvailable(ctx context.Context, guildID, gen int64) ([]int, bool, error) {
	data, err := r.client.Get(ctx, availableKey(guildID, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var numbers []int
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, false, err
	}
	return numbers, true, nil
}

func (r *redisCacheService) SetAvailable(ctx context.Context, guildID, gen int64, numbers []int, ttl time.Duration) error {
	data, err := json.Marshal(numbers)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, availableKey(guildID, gen), data, ttl).Err()
}

func (r *redisCacheService) InvalidateTenantCache(ctx context.Context, guildID int64) error {
	gen, err := r.client.Incr(ctx, generationKey(guildID)).Result()
	if err != nil {
		return err
	}
	// The old value is unreachable now; dropping it only frees memory early.
	if err := r.client.Del(ctx, availableKey(guildID, gen-1)).Err(); err != nil {
		r.logger.Debug("dropping superseded availability failed", zap.Int64("guild_id", guildID), zap.Error(err))
	}
	return nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}

type nopCacheService struct{}

// NewNopCacheService returns a cache that never stores anything.
func NewNopCacheService() CacheService {
	return nopCacheService{}
}

func (nopCacheService) Generation(context.Context, int64) (int64, error) {
	return 0, nil
}

func (nopCacheService) GetAvailable(context.Context, int64, int64) ([]int, bool, error) {
	return nil, false, nil
}

func (nopCacheService) SetAvailable(context.Context, int64, int64, []int, time.Duration) error {
	return nil
}

func (nopCacheService) InvalidateTenantCache(context.Context, int64) error {
	return nil
}

func (nopCacheService) Ping(context.Context) error {
	return nil
}

func (nopCacheService) Close() error {
	return nil
}
