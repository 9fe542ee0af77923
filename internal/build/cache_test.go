package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadeforge/arcadeforge/internal/logging"
)

func testCache(t *testing.T) (*BuildCache, string) {
	t.Helper()
	dir := t.TempDir()
	cache := NewBuildCache(filepath.Join(dir, "cache.json"), 1<<20, time.Hour, logging.NewNop())
	return cache, dir
}

func writeOutput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	return path
}

func TestLookup_HitRequiresFingerprintAndOutput(t *testing.T) {
	cache, dir := testCache(t)
	output := writeOutput(t, dir, "page.html")

	cache.Store(&CacheEntry{
		Key:         "site/pong",
		Fingerprint: "fp1",
		OutputPath:  output,
		Size:        13,
		BuiltAt:     time.Now(),
	})

	_, ok := cache.Lookup("site/pong", "fp1")
	assert.True(t, ok)

	_, ok = cache.Lookup("site/pong", "fp2")
	assert.False(t, ok, "stale fingerprint must miss")

	_, ok = cache.Lookup("site/other", "fp1")
	assert.False(t, ok, "unknown key must miss")

	require.NoError(t, os.Remove(output))
	_, ok = cache.Lookup("site/pong", "fp1")
	assert.False(t, ok, "deleted output must miss")
}

func TestLookup_ExpiredEntryMisses(t *testing.T) {
	dir := t.TempDir()
	cache := NewBuildCache(filepath.Join(dir, "cache.json"), 1<<20, time.Minute, logging.NewNop())
	output := writeOutput(t, dir, "page.html")

	cache.Store(&CacheEntry{
		Key:         "site/pong",
		Fingerprint: "fp1",
		OutputPath:  output,
		BuiltAt:     time.Now().Add(-2 * time.Minute),
	})

	_, ok := cache.Lookup("site/pong", "fp1")
	assert.False(t, ok)
}

func TestSaveAndLoad_Roundtrip(t *testing.T) {
	cache, dir := testCache(t)
	output := writeOutput(t, dir, "page.html")

	cache.Store(&CacheEntry{
		Key:         "site/pong",
		Fingerprint: "fp1",
		OutputPath:  output,
		Size:        13,
		BuiltAt:     time.Now(),
	})
	require.NoError(t, cache.Save())

	reloaded := NewBuildCache(filepath.Join(dir, "cache.json"), 1<<20, time.Hour, logging.NewNop())
	require.NoError(t, reloaded.Load(context.Background()))

	entry, ok := reloaded.Lookup("site/pong", "fp1")
	require.True(t, ok)
	assert.Equal(t, output, entry.OutputPath)
}

func TestLoad_MissingFileIsColdStart(t *testing.T) {
	cache, _ := testCache(t)
	require.NoError(t, cache.Load(context.Background()))
	assert.Equal(t, 0, cache.Len())
}

func TestLoad_CorruptFileDegradesToCold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{not json"), 0o644))

	cache := NewBuildCache(path, 1<<20, time.Hour, logging.NewNop())
	require.NoError(t, cache.Load(context.Background()))
	assert.Equal(t, 0, cache.Len())
}

func TestLoad_UnknownVersionDegradesToCold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"entries":[]}`), 0o644))

	cache := NewBuildCache(path, 1<<20, time.Hour, logging.NewNop())
	require.NoError(t, cache.Load(context.Background()))
	assert.Equal(t, 0, cache.Len())
}

func TestLoad_DropsExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	output := writeOutput(t, dir, "page.html")

	stale := fmt.Sprintf(
		`{"version":1,"entries":[{"key":"site/old","fingerprint":"fp1","output_path":%q,"size":13,"built_at":%q}]}`,
		output, time.Now().Add(-time.Hour).Format(time.RFC3339),
	)
	require.NoError(t, os.WriteFile(path, []byte(stale), 0o644))

	reloaded := NewBuildCache(path, 1<<20, time.Minute, logging.NewNop())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, 0, reloaded.Len())
}

func TestSave_EvictsOldestWhenOverBudget(t *testing.T) {
	dir := t.TempDir()
	cache := NewBuildCache(filepath.Join(dir, "cache.json"), 100, time.Hour, logging.NewNop())

	for i := 0; i < 5; i++ {
		cache.Store(&CacheEntry{
			Key:         fmt.Sprintf("site/game-%d", i),
			Fingerprint: "fp",
			OutputPath:  writeOutput(t, dir, fmt.Sprintf("page-%d.html", i)),
			Size:        40,
			BuiltAt:     time.Now().Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, cache.Save())

	// 100 byte budget holds two 40 byte entries; the newest survive.
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Lookup("site/game-4", "fp")
	assert.True(t, ok)
	_, ok = cache.Lookup("site/game-0", "fp")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	cache, dir := testCache(t)
	output := writeOutput(t, dir, "page.html")

	cache.Store(&CacheEntry{Key: "k", Fingerprint: "fp", OutputPath: output, BuiltAt: time.Now()})
	cache.Lookup("k", "fp")
	cache.Lookup("k", "other")
	cache.Lookup("absent", "fp")

	hits, misses, sets, _ := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, int64(1), sets)
	assert.InDelta(t, 1.0/3.0, cache.HitRate(), 1e-9)
}
