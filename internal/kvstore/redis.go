package kvstore

import (
	"context"
	"errors"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"pkt.systems/pslog"
)

// DefaultRedisPrefix namespaces keys written by the shell.
const DefaultRedisPrefix = "wayfare:"

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr   string
	DB     int
	Prefix string
}

// RedisStore keeps each key as a plain redis string.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	log    pslog.Logger
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig, logger pslog.Logger) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Addr, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		if logger != nil {
			logger.Warn("redis ping failed", "addr", cfg.Addr, "err", err)
		}
		return nil, err
	}
	return NewRedisStore(rdb, cfg.Prefix, logger), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *goredis.Client, prefix string, logger pslog.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger != nil {
		logger = logger.With("redis_prefix", prefix)
	}
	return &RedisStore{rdb: rdb, prefix: prefix, log: logger}
}

// Get returns the value stored at key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		if s.log != nil {
			s.log.Warn("redis get failed", "key", key, "err", err)
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores value at key without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
	if err != nil && s.log != nil {
		s.log.Warn("redis set failed", "key", key, "err", err)
	}
	return err
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.rdb.Del(ctx, s.prefix+key).Err()
	if err != nil && s.log != nil {
		s.log.Warn("redis delete failed", "key", key, "err", err)
	}
	return err
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
