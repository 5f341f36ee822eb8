package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache memoizes serialized query results by key. Entries never expire; they live until Clear
// or until the backing store goes away.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Clear drops every entry and reports how many were removed
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

// Config holds cache configuration
type Config struct {
	Backend   string `yaml:"backend" json:"backend"` // memory or redis
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix"`
	Redis     struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"-"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	cfg := Config{
		Backend:   BackendMemory,
		KeyPrefix: "transfer-dashboard:memo:",
	}
	cfg.Redis.Addr = "localhost:6379"
	return cfg
}

// New builds the configured cache
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisCache(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Key serializes a (kind, parameters) tuple. Parameters are encoded in sorted order
// so the same tuple always maps to the same key.
func Key(kind string, params url.Values) string {
	return kind + "?" + params.Encode()
}

// Digest is a fixed-length form of key for stores that prefer short keys
func Digest(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
