package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/tumorscope/pkg/classify"
)

// Cache stores predictions keyed by image content.
type Cache interface {
	Get(ctx context.Context, key string) ([]classify.Prediction, bool, error)
	Set(ctx context.Context, key string, preds []classify.Prediction) error
}

// CacheKey derives the cache key for image bytes.
func CacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RedisCache keeps predictions in Redis as JSON.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures NewRedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "tumorscope:predictions:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

// Get returns cached predictions. A miss is (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key string) ([]classify.Prediction, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	preds, err := decodePredictions(data)
	if err != nil {
		return nil, false, err
	}
	return preds, true, nil
}

// Set stores predictions with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, preds []classify.Prediction) error {
	data, err := encodePredictions(preds)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodePredictions(preds []classify.Prediction) ([]byte, error) {
	return json.Marshal(preds)
}

func decodePredictions(data []byte) ([]classify.Prediction, error) {
	var preds []classify.Prediction
	if err := json.Unmarshal(data, &preds); err != nil {
		return nil, fmt.Errorf("decode cached predictions: %w", err)
	}
	return preds, nil
}
