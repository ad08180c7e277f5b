package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"autopilot/internal/domain"
)

// RedisConfig holds connection parameters for the Redis sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis stores each record under <prefix>:<category>:<key> and indexes keys
// per category in a sorted set scored by write time.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis sink: ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: cfg.Prefix}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Append(ctx context.Context, category domain.Category, key string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis sink: encoding %s/%s: %w", category, key, err)
	}

	recordKey := fmt.Sprintf("%s:%s:%s", r.prefix, category, key)
	indexKey := fmt.Sprintf("%s:%s:index", r.prefix, category)

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, recordKey, body, 0)
	pipe.ZAddNX(ctx, indexKey, redis.Z{Score: float64(nowUnixMilli()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis sink: writing %s: %w", recordKey, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Name() string { return "redis" }
