package declarest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache is the key/value port shared by auth token mirroring and endpoint
// response caching. Values are serialized to JSON bytes before storage so
// the in-memory and networked backends share semantics. A ttl <= 0 means no
// expiration. Get returns ErrCacheMiss for absent or lapsed keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is a sharded in-process Cache with lazy expiry: lapsed
// entries are purged on the Get that observes them, not by a background
// sweeper. Keys set with no TTL and never re-read therefore stay resident
// for the life of the process.
type MemoryCache struct {
	shards    []*cacheShard
	numShards int
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*memoryEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{store: make(map[string]*memoryEntry)}
	}
	return &MemoryCache{shards: shards, numShards: numShards}
}

func (c *MemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, exists := shard.store[key]
	shard.mu.RUnlock()

	if !exists {
		return nil, ErrCacheMiss
	}
	if entry.expired(time.Now()) {
		shard.mu.Lock()
		if cur, ok := shard.store[key]; ok && cur == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := &memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	shard := c.getShard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if err == ErrCacheMiss {
		return false, nil
	}
	return err == nil, err
}

func (c *MemoryCache) Clear(_ context.Context) error {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*memoryEntry)
		shard.mu.Unlock()
	}
	return nil
}

// responseCacheKey derives a deterministic key for a cached endpoint result
// from the API name, endpoint name and the normalized call arguments. Two
// invocations with equal inputs, regardless of map iteration order, hash to
// the same key.
func responseCacheKey(api, endpoint string, params map[string]any, headers map[string][]string) string {
	var b strings.Builder
	b.WriteString(api)
	b.WriteByte('|')
	b.WriteString(endpoint)

	paramKeys := make([]string, 0, len(params))
	for k := range params {
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)
	for _, k := range paramKeys {
		fmt.Fprintf(&b, "|%s=%v", k, params[k])
	}

	headerKeys := make([]string, 0, len(headers))
	for k := range headers {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)
	for _, k := range headerKeys {
		fmt.Fprintf(&b, "|%s=%s", k, strings.Join(headers[k], ","))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "endpoint_" + hex.EncodeToString(sum[:16])
}
