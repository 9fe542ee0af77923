package build

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/logging"
)

const shardCount = 16

// CacheEntry records one previously built page.
type CacheEntry struct {
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	OutputPath  string    `json:"output_path"`
	Size        int64     `json:"size"`
	BuiltAt     time.Time `json:"built_at"`
}

// BuildCache is the persistent fingerprint index that makes rebuilds
// incremental. Entries are sharded by key hash so concurrent workers do
// not contend on one lock. A hit requires both a matching fingerprint and
// the output file still existing on disk.
type BuildCache struct {
	shards   [shardCount]*cacheShard
	path     string
	maxBytes int64
	maxAge   time.Duration
	log      logging.Logger

	// Statistics tracking (atomic for thread safety)
	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

type cacheShard struct {
	mutex   sync.RWMutex
	entries map[string]*CacheEntry
}

// cacheFile is the on-disk persistence format.
type cacheFile struct {
	Version int           `json:"version"`
	Entries []*CacheEntry `json:"entries"`
}

const cacheFileVersion = 1

// NewBuildCache creates a cache persisted at path, bounded by maxBytes of
// recorded output and maxAge per entry.
func NewBuildCache(path string, maxBytes int64, maxAge time.Duration, log logging.Logger) *BuildCache {
	bc := &BuildCache{
		path:     path,
		maxBytes: maxBytes,
		maxAge:   maxAge,
		log:      log.WithComponent("cache"),
	}
	for i := range bc.shards {
		bc.shards[i] = &cacheShard{entries: make(map[string]*CacheEntry)}
	}
	return bc
}

// Load reads the persisted cache from disk. A missing file is a normal
// cold start. A corrupt file is logged and discarded, degrading to a cold
// cache rather than failing the build.
func (bc *BuildCache) Load(ctx context.Context) error {
	data, err := os.ReadFile(bc.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewCacheError(errors.ErrCodeCacheCorruption, "reading cache file", err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil || file.Version != cacheFileVersion {
		bc.log.Warn(ctx, err, "discarding corrupt build cache, rebuilding cold", "path", bc.path)
		return nil
	}

	cutoff := time.Now().Add(-bc.maxAge)
	for _, entry := range file.Entries {
		if entry.Key == "" || entry.Fingerprint == "" {
			continue
		}
		if entry.BuiltAt.Before(cutoff) {
			atomic.AddInt64(&bc.evictions, 1)
			continue
		}
		shard := bc.shard(entry.Key)
		shard.entries[entry.Key] = entry
	}

	return nil
}

// Save persists the cache atomically. Eviction runs first so the file on
// disk always respects the size and age bounds.
func (bc *BuildCache) Save() error {
	bc.evict()

	file := cacheFile{Version: cacheFileVersion, Entries: bc.snapshot()}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errors.NewCacheError(errors.ErrCodeCacheCorruption, "encoding cache file", err)
	}

	if err := os.MkdirAll(filepath.Dir(bc.path), 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeCacheCorruption, "creating cache directory", err)
	}

	tmp := bc.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeCacheCorruption, "writing cache file", err)
	}
	if err := os.Rename(tmp, bc.path); err != nil {
		os.Remove(tmp)
		return errors.NewIOError(errors.ErrCodeCacheCorruption, "publishing cache file", err)
	}

	return nil
}

// Lookup reports whether key was built with the same fingerprint and the
// output it points at still exists.
func (bc *BuildCache) Lookup(key, fingerprint string) (*CacheEntry, bool) {
	shard := bc.shard(key)
	shard.mutex.RLock()
	entry, exists := shard.entries[key]
	shard.mutex.RUnlock()

	if !exists || entry.Fingerprint != fingerprint {
		atomic.AddInt64(&bc.misses, 1)
		return nil, false
	}
	if time.Since(entry.BuiltAt) > bc.maxAge {
		atomic.AddInt64(&bc.misses, 1)
		return nil, false
	}
	if _, err := os.Stat(entry.OutputPath); err != nil {
		atomic.AddInt64(&bc.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&bc.hits, 1)
	return entry, true
}

// Store records a freshly built page.
func (bc *BuildCache) Store(entry *CacheEntry) {
	shard := bc.shard(entry.Key)
	shard.mutex.Lock()
	shard.entries[entry.Key] = entry
	shard.mutex.Unlock()

	atomic.AddInt64(&bc.sets, 1)
}

// Invalidate drops one key.
func (bc *BuildCache) Invalidate(key string) {
	shard := bc.shard(key)
	shard.mutex.Lock()
	delete(shard.entries, key)
	shard.mutex.Unlock()
}

// Clear drops every entry.
func (bc *BuildCache) Clear() {
	for _, shard := range bc.shards {
		shard.mutex.Lock()
		shard.entries = make(map[string]*CacheEntry)
		shard.mutex.Unlock()
	}
}

// Len returns the number of cached entries.
func (bc *BuildCache) Len() int {
	n := 0
	for _, shard := range bc.shards {
		shard.mutex.RLock()
		n += len(shard.entries)
		shard.mutex.RUnlock()
	}
	return n
}

// Stats returns hit, miss, set, and eviction counts.
func (bc *BuildCache) Stats() (hits, misses, sets, evictions int64) {
	return atomic.LoadInt64(&bc.hits),
		atomic.LoadInt64(&bc.misses),
		atomic.LoadInt64(&bc.sets),
		atomic.LoadInt64(&bc.evictions)
}

// HitRate returns the hit rate in [0.0, 1.0].
func (bc *BuildCache) HitRate() float64 {
	hits := atomic.LoadInt64(&bc.hits)
	misses := atomic.LoadInt64(&bc.misses)
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// evict drops expired entries, then the oldest entries until the recorded
// output size fits the byte bound.
func (bc *BuildCache) evict() {
	cutoff := time.Now().Add(-bc.maxAge)
	for _, shard := range bc.shards {
		shard.mutex.Lock()
		for key, entry := range shard.entries {
			if entry.BuiltAt.Before(cutoff) {
				delete(shard.entries, key)
				atomic.AddInt64(&bc.evictions, 1)
			}
		}
		shard.mutex.Unlock()
	}

	entries := bc.snapshot()
	var total int64
	for _, entry := range entries {
		total += entry.Size
	}
	if total <= bc.maxBytes {
		return
	}

	// Oldest first.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].BuiltAt.Before(entries[j].BuiltAt)
	})
	for _, entry := range entries {
		if total <= bc.maxBytes {
			break
		}
		bc.Invalidate(entry.Key)
		total -= entry.Size
		atomic.AddInt64(&bc.evictions, 1)
	}
}

// snapshot returns all entries sorted by key for stable persistence.
func (bc *BuildCache) snapshot() []*CacheEntry {
	var entries []*CacheEntry
	for _, shard := range bc.shards {
		shard.mutex.RLock()
		for _, entry := range shard.entries {
			entries = append(entries, entry)
		}
		shard.mutex.RUnlock()
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

func (bc *BuildCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return bc.shards[h.Sum32()%shardCount]
}
