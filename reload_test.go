package rushtpl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestWatcherScan(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "nested", "b.html")
	touch(t, a, "a", base)
	touch(t, filepath.Join(dir, "skip.txt"), "x", base)

	w := NewWatcher([]string{dir, filepath.Join(dir, "missing")}, ".html", time.Second, 0, nil)
	changed, err := w.Scan()
	require.NoError(t, err)
	assert.Empty(t, changed, "first scan only records state")

	touch(t, a, "a2", base.Add(time.Minute))
	touch(t, b, "b", base)
	changed, err = w.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, changed)

	changed, err = w.Scan()
	require.NoError(t, err)
	assert.Empty(t, changed)

	require.NoError(t, os.Remove(b))
	changed, err = w.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{b}, changed)
}

func TestWatcherDebouncesNotifications(t *testing.T) {
	w := NewWatcher(nil, ".html", time.Second, 20*time.Millisecond, nil)

	var (
		mu      sync.Mutex
		batches [][]string
	)
	w.AddCallback(func(paths []string) {
		mu.Lock()
		batches = append(batches, paths)
		mu.Unlock()
	})

	w.Notify("b.html")
	w.Notify("a.html", "b.html")
	w.Notify()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"a.html", "b.html"}}, batches)
}

func TestWatcherRun(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.html"), "a", time.Now().Add(-time.Hour))

	w := NewWatcher([]string{dir}, ".html", 10*time.Millisecond, 10*time.Millisecond, nil)
	got := make(chan []string, 4)
	w.AddCallback(func(paths []string) { got <- paths })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// let the initial scan seed the state
	time.Sleep(30 * time.Millisecond)
	added := filepath.Join(dir, "b.html")
	touch(t, added, "b", time.Now())

	select {
	case paths := <-got:
		assert.Equal(t, []string{added}, paths)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
