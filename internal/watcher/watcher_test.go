package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadeforge/arcadeforge/internal/logging"
)

func TestWatcher_DebouncesBurstIntoOneRebuild(t *testing.T) {
	dir := t.TempDir()

	var rebuilds int64
	w, err := New(100*time.Millisecond, func(ctx context.Context, events []ChangeEvent) error {
		atomic.AddInt64(&rebuilds, 1)
		assert.NotEmpty(t, events)
		return nil
	}, logging.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Burst of writes inside one debounce window.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "game.yaml"), []byte("title: x\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&rebuilds) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Stays at one after the window closes.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&rebuilds))
}

func TestWatcher_IgnoresEditorNoise(t *testing.T) {
	dir := t.TempDir()

	var rebuilds int64
	w, err := New(50*time.Millisecond, func(ctx context.Context, events []ChangeEvent) error {
		atomic.AddInt64(&rebuilds, 1)
		return nil
	}, logging.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup~"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&rebuilds))
}

func TestIgnored(t *testing.T) {
	cases := map[string]bool{
		"/site/content/games/pong/game.yaml": false,
		"/site/content/.DS_Store":            true,
		"/site/content/game.yaml~":           true,
		"/site/content/.game.yaml.swp":       true,
		"/site/content/body.md":              false,
	}
	for path, want := range cases {
		assert.Equal(t, want, ignored(path), path)
	}
}
