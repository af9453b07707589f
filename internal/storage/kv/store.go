package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
)

// ErrNotFound 表示 key 不存在。
var ErrNotFound = errors.New("kv: key not found")

// Store 是本地持久化的最小 key-value 接口，值为序列化后的结构化数据。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Open 根据配置选择存储后端。
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.StorageRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
