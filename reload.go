package rushtpl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/0xTanzim/rushtpl/internal/logging"
)

// ----------------------------- Template watcher -----------------------------

// ChangeCallback receives the files that changed during one debounce window.
type ChangeCallback func(paths []string)

// Watcher polls template directories for added, modified and removed files
// and reports them in debounced batches.
type Watcher struct {
	roots    []string
	pattern  string
	interval time.Duration
	debounce time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	modTimes  map[string]time.Time
	seeded    bool
	pending   map[string]struct{}
	timer     *time.Timer
	callbacks []ChangeCallback
}

// NewWatcher watches every file ending in ext below roots.
func NewWatcher(roots []string, ext string, interval, debounce time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{
		roots:    roots,
		pattern:  filepath.Join("**", "*"+ext),
		interval: interval,
		debounce: debounce,
		log:      log,
		modTimes: make(map[string]time.Time),
		pending:  make(map[string]struct{}),
	}
}

// AddCallback registers fn to run after each debounced batch of changes.
func (w *Watcher) AddCallback(fn ChangeCallback) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Files lists the template files currently below the roots.
func (w *Watcher) Files() (map[string]time.Time, error) {
	files := make(map[string]time.Time)
	for _, root := range w.roots {
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(root, w.pattern))
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
		for _, p := range matches {
			info, err := os.Stat(p)
			if err != nil || info.IsDir() {
				continue
			}
			files[p] = info.ModTime()
		}
	}
	return files, nil
}

// Scan polls once and returns the paths that changed since the previous
// scan. The first scan only records the current state.
func (w *Watcher) Scan() ([]string, error) {
	files, err := w.Files()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	var changed []string
	if w.seeded {
		for p, mt := range files {
			if old, ok := w.modTimes[p]; !ok || !old.Equal(mt) {
				changed = append(changed, p)
			}
		}
		for p := range w.modTimes {
			if _, ok := files[p]; !ok {
				changed = append(changed, p)
			}
		}
	}
	w.modTimes = files
	w.seeded = true
	sort.Strings(changed)
	return changed, nil
}

// Notify queues paths and restarts the debounce timer.
func (w *Watcher) Notify(paths ...string) {
	if len(paths) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.pending[p] = struct{}{}
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	callbacks := append([]ChangeCallback(nil), w.callbacks...)
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.log.Info("templates changed", slog.Int("files", len(paths)))
	for _, cb := range callbacks {
		cb(paths)
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.Scan(); err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := w.Scan()
			if err != nil {
				w.log.Warn("template scan failed", slog.Any("error", err))
				continue
			}
			w.Notify(changed...)
		}
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}
