package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skoglund/cardnav/internal/storage"
)

// reconcileDelay debounces the post-rename reconciliation pass so a burst
// of rename events triggers a single sweep.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watcher mirrors filesystem changes under the vault root into the note
// index. It only reacts to .md files; everything else is ignored.
type Watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
}

// NewWatcher returns a Watcher over vaultRoot. cb may be nil.
func NewWatcher(db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) *Watcher {
	return &Watcher{db: db, store: store, root: vaultRoot, logger: logger, cb: cb}
}

// Run watches the vault until ctx is cancelled. Directories created at
// runtime are added to the watch list. Rename events schedule a debounced
// reconciliation pass that drops index entries whose files are gone and
// indexes files that appeared under a new name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := watchTree(fw, w.root); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev, scheduleReconcile)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, scheduleReconcile func()) {
	absPath := ev.Name

	// New directories get added to the watch list, and any notes already
	// inside them get indexed.
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := watchTree(fw, absPath); addErr != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
			}
			w.indexDir(absPath)
			return
		}
	}

	if !strings.HasSuffix(absPath, ".md") {
		return
	}

	rel, relErr := filepath.Rel(w.root, absPath)
	if relErr != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, readErr := w.store.Read(rel)
		if readErr != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
			return
		}
		if idxErr := indexFile(w.db, rel, data); idxErr != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
			return
		}
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
		w.emit(kind, rel)

	case ev.Op&fsnotify.Remove != 0:
		if delErr := w.db.DeleteNote(rel); delErr != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
			return
		}
		w.logger.Debug("watcher: deleted", slog.String("path", rel))
		w.emit("deleted", rel)

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify fires Rename on the OLD path only; the new path arrives
		// as a separate Create event if it lands in a watched dir. Delete
		// the old entry now and sweep for stragglers shortly after.
		if delErr := w.db.DeleteNote(rel); delErr != nil {
			w.logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
		} else {
			w.logger.Debug("watcher: rename old deleted", slog.String("path", rel))
			w.emit("deleted", rel)
		}
		scheduleReconcile()
	}
}

func (w *Watcher) emit(kind, path string) {
	if w.cb != nil {
		w.cb(kind, path)
	}
}

// reconcile compares the index against the disk and fixes both directions:
// stale entries are removed, changed or new files are re-indexed.
func (w *Watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := w.db.DeleteNote(p); delErr == nil {
				w.logger.Debug("reconcile: removed stale", slog.String("path", p))
				w.emit("deleted", p)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, readErr := w.store.Read(p)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(w.db, p, data); idxErr == nil {
			w.logger.Debug("reconcile: indexed new", slog.String("path", p))
			w.emit("created", p)
		}
	}
}

// indexDir indexes any .md files found in a newly created directory.
func (w *Watcher) indexDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := w.store.Read(rel)
		if readErr != nil {
			return nil
		}
		if idxErr := indexFile(w.db, rel, data); idxErr == nil {
			w.logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			w.emit("created", rel)
		}
		return nil
	})
}

// watchTree adds root and all its subdirectories to the watcher.
func watchTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
