package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("record not in cache")

// Should be safe to use concurrently
type RecordCache interface {
	// Get returns the cached record for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a record, replacing any existing value.
	Set(ctx context.Context, key string, record []byte) error
}

// cacheKey identifies a decoded record by document type and a hash of the raw barcode.
// Raw barcode bytes are never used as keys directly.
func cacheKey(documentType string, raw []byte) string {
	sum := sha256.Sum256(raw)
	return documentType + ":" + hex.EncodeToString(sum[:])
}

// ------------------------------------------------------------------------------

type NoRecordCache struct{}

func (NoRecordCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoRecordCache) Set(context.Context, string, []byte) error {
	return nil
}

// ------------------------------------------------------------------------------

type cacheEntry struct {
	record    []byte
	expiresAt time.Time
}

type InMemoryRecordCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	mutex   sync.Mutex
}

func NewInMemoryRecordCache(ttl time.Duration) *InMemoryRecordCache {
	return &InMemoryRecordCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *InMemoryRecordCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return entry.record, nil
}

func (c *InMemoryRecordCache) Set(_ context.Context, key string, record []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{
		record:    append([]byte(nil), record...),
		expiresAt: now.Add(c.ttl),
	}
	return nil
}

// ------------------------------------------------------------------------------

type RedisRecordCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

func NewRedisRecordCache(client *redis.Client, namespace string, ttl time.Duration) *RedisRecordCache {
	return &RedisRecordCache{client: client, namespace: namespace, ttl: ttl}
}

func (c *RedisRecordCache) createKey(key string) string {
	return fmt.Sprintf("%s:record:%s", c.namespace, key)
}

func (c *RedisRecordCache) Get(ctx context.Context, key string) ([]byte, error) {
	record, err := c.client.Get(ctx, c.createKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record from redis: %w", err)
	}
	return record, nil
}

func (c *RedisRecordCache) Set(ctx context.Context, key string, record []byte) error {
	if err := c.client.Set(ctx, c.createKey(key), record, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store record in redis: %w", err)
	}
	return nil
}
