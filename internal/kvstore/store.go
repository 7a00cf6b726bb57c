// Package kvstore provides the local string key-value storage the shell
// keeps client state in.
package kvstore

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/pslog"
)

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watcher is implemented by stores that can report external changes.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	FilePath    string
	SQLitePath  string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config, logger pslog.Logger) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}
	if logger != nil {
		logger = logger.With("storage", backend)
	}
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFileStoreWithLogger(cfg.FilePath, logger)
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	case BackendRedis:
		return OpenRedis(ctx, RedisConfig{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
