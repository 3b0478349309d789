package rushtpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig describes the Redis server a RedisSource reads from.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	// Prefix is prepended to every key; the default is "rushtpl:".
	Prefix string `yaml:"prefix"`
}

// RedisSource reads templates from string keys "<prefix><kind>:<name><ext>".
type RedisSource struct {
	rdb    *redis.Client
	prefix string
	ext    string
}

// NewRedisSource connects to Redis and checks the connection.
func NewRedisSource(cfg RedisConfig, ext string) (*RedisSource, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:6379"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisSourceFromClient(rdb, cfg.Prefix, ext), nil
}

// NewRedisSourceFromClient wraps an existing client.
func NewRedisSourceFromClient(rdb *redis.Client, prefix, ext string) *RedisSource {
	if prefix == "" {
		prefix = "rushtpl:"
	}
	return &RedisSource{rdb: rdb, prefix: prefix, ext: ext}
}

func (s *RedisSource) Resolve(kind Kind, name string) string {
	return s.prefix + kind.String() + ":" + withExt(name, s.ext)
}

func (s *RedisSource) Read(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, ref).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading redis key %q: %w", ref, err)
	}
	return data, nil
}

// Put stores template text for kind and name.
func (s *RedisSource) Put(ctx context.Context, kind Kind, name, text string) error {
	if err := s.rdb.Set(ctx, s.Resolve(kind, name), text, 0).Err(); err != nil {
		return fmt.Errorf("storing %s %q: %w", kind, name, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSource) Close() error {
	return s.rdb.Close()
}
