package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a Store when its policy file changes on disk.
type Watcher struct {
	Store    *Store
	Logger   *slog.Logger
	Debounce time.Duration
	// OnReload is called after each reload attempt.
	OnReload func(changed bool, err error)
}

// Watch blocks until ctx is cancelled. The parent directory is watched so
// that editors replacing the file by rename are picked up.
func (w *Watcher) Watch(ctx context.Context) error {
	if w.Store == nil || w.Store.Path() == "" {
		return fmt.Errorf("watcher requires a file-backed store")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	target := filepath.Clean(w.Store.Path())
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("policy watcher started", "path", target, "debounce_ms", debounce.Milliseconds())

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		changed, err := w.Store.Reload()
		if err != nil {
			logger.Error("policy reload failed; keeping previous snapshot", "error", err)
		} else if changed {
			snap := w.Store.Snapshot()
			logger.Info("policy reloaded", "policy_id", snap.Policy.PolicyID, "policy_version", snap.Policy.PolicyVersion, "policy_hash", snap.Hash)
		}
		if w.OnReload != nil {
			w.OnReload(changed, err)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("policy watcher stopped")
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Warn("policy watcher error", "error", err)
		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, fire)
			mu.Unlock()
		}
	}
}
