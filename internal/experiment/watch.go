package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/cryoet-tools/morphorun/internal/config"
)

// Watch observes the active experiment's config file and broadcasts
// EventExternalChange when another process modifies it. The reloaded
// config accompanies the event so stages can rehydrate. Watch blocks
// until ctx is cancelled or the watcher fails.
//
// The parent directory is watched rather than the file itself: editors
// and the store's backup-then-write save replace the file, which would
// silently detach a file-level watch.
func (m *Manager) Watch(ctx context.Context) error {
	layout := m.Layout()
	if layout.ConfigPath == "" {
		return fmt.Errorf("no experiment loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(layout.ConfigPath)); err != nil {
		return fmt.Errorf("watch %s: %w", layout.ConfigPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != layout.ConfigPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			m.reloadExternal(layout)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// reloadExternal re-reads the config after an on-disk change. A
// half-written or invalid file is logged and skipped; the previous
// in-memory state stands until a consistent version appears.
func (m *Manager) reloadExternal(layout Layout) {
	doc, err := config.Load(layout.ConfigPath)
	if err != nil {
		slog.Warn("external config change is unreadable, session is stale", "path", layout.ConfigPath, "error", err)
		m.markStale()
		return
	}
	cfg, err := config.Decode(doc)
	if err != nil {
		slog.Warn("external config change is invalid, session is stale", "path", layout.ConfigPath, "error", err)
		m.markStale()
		return
	}

	m.mu.Lock()
	m.doc = doc
	m.cfg = cfg
	m.phase = Ready
	m.mu.Unlock()

	slog.Info("config changed externally, reloaded", "path", layout.ConfigPath)
	m.broadcast(Event{Kind: EventExternalChange, Config: cfg})
}

func (m *Manager) markStale() {
	m.mu.Lock()
	m.phase = Stale
	m.mu.Unlock()
}
