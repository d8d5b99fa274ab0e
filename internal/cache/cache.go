// Package cache stores evaluated dashboard results in Redis so repeated
// filter selections skip re-evaluation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"freight-dashboard/internal/config"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
)

const keyPrefix = "freight:result:v2:"

// Results is a Redis-backed store of engine results keyed by Key.
type Results struct {
	client *redis.Client
	ttl    time.Duration

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

func New(client *redis.Client, ttl time.Duration) *Results {
	return &Results{client: client, ttl: ttl}
}

// Connect dials Redis from cfg and verifies the connection with PING.
func Connect(ctx context.Context, cfg config.CacheConfig) (*Results, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.TTL), nil
}

// Key derives the cache key for one evaluation. Equivalent specs map to the
// same key: categorical values are normalized and sorted first.
func Key(fingerprint string, spec models.FilterSpec, granularity engine.Granularity) (string, error) {
	canonical := make(models.FilterSpec, len(spec))
	for dim, c := range spec {
		if !c.Active() {
			continue
		}
		if c.Kind == models.KindCategorical {
			values := make([]string, len(c.Values))
			for i, v := range c.Values {
				values[i] = models.NormalizeCategory(v)
			}
			slices.Sort(values)
			c = models.OneOf(slices.Compact(values)...)
		}
		canonical[dim] = c
	}

	specJSON, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encode filter spec: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(specJSON)
	h.Write([]byte{0})
	h.Write([]byte(granularity))
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached result for key. A miss is (nil, false, nil).
func (c *Results) Get(ctx context.Context, key string) (*models.EngineResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.failures.Add(1)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result models.EngineResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.failures.Add(1)
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	c.hits.Add(1)
	return &result, true, nil
}

func (c *Results) Set(ctx context.Context, key string, result *models.EngineResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.failures.Add(1)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Flush removes every cached result, e.g. after the dataset was reloaded.
func (c *Results) Flush(ctx context.Context) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

func (c *Results) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Results) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.failures.Load(),
	}
}

func (c *Results) Close() error {
	return c.client.Close()
}
