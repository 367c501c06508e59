// Package cache stores rendered HTML keyed by the Markdown it came from.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/redis/go-redis/v9"

	"md2html/internal/config"
	"md2html/internal/domain"
)

// Store is a byte-value cache. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// NewStore builds the backend selected in cfg.Cache.Backend.
func NewStore(cfg config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		return NewRedisStore(redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RedisDB,
		})), nil
	case config.CacheBackendMemory, "":
		return NewStorageStore(memoryStorage.New()), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCacheBackend, cfg.Cache.Backend)
	}
}

// RedisStore keeps entries in Redis.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// StorageStore adapts a fiber.Storage, which has no context support.
type StorageStore struct {
	storage fiber.Storage
}

func NewStorageStore(storage fiber.Storage) *StorageStore {
	return &StorageStore{storage: storage}
}

func (s *StorageStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := s.storage.Get(key)
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	return val, nil
}

func (s *StorageStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.storage.Set(key, val, ttl)
}

func (s *StorageStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *StorageStore) Close() error {
	return s.storage.Close()
}
