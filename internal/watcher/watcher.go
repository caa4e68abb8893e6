// Package watcher unloads the active video when its file disappears from
// disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

// Watcher follows the session: while a video is loaded its directory is
// watched, and a remove or rename of the file clears the session.
type Watcher struct {
	session *session.Session
	fsw     *fsnotify.Watcher
	logger  *slog.Logger

	mu   sync.Mutex
	dir  string // watched directory, "" when idle
	path string // active video

	unsubscribe func()
}

func New(sess *session.Session, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	w := &Watcher{
		session: sess,
		fsw:     fsw,
		logger:  logging.WithComponent(logger, "watcher"),
	}
	w.follow(sess.Current())
	w.unsubscribe = sess.Subscribe(func(_, next session.State) {
		w.follow(next)
	})
	return w, nil
}

// Run handles file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops following the session and releases the OS watch.
func (w *Watcher) Close() error {
	w.unsubscribe()
	return w.fsw.Close()
}

// Watching is the video path currently watched, or "".
func (w *Watcher) Watching() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *Watcher) follow(st session.State) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := ""
	if st.Loaded {
		path = filepath.Clean(st.Path)
	}
	dir := ""
	if path != "" {
		dir = filepath.Dir(path)
	}

	if dir != w.dir {
		if w.dir != "" {
			if err := w.fsw.Remove(w.dir); err != nil {
				w.logger.Debug("failed to remove watch", "dir", logging.SanitizePath(w.dir), "error", err)
			}
		}
		if dir != "" {
			if err := w.fsw.Add(dir); err != nil {
				w.logger.Warn("failed to watch video directory", "dir", logging.SanitizePath(dir), "error", err)
				dir = ""
			}
		}
		w.dir = dir
	}
	w.path = path
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	path := w.path
	w.mu.Unlock()

	if path == "" || filepath.Clean(ev.Name) != path {
		return
	}
	if w.session.ClearIf(path) {
		w.logger.Info("active video removed from disk, unloaded", "path", logging.SanitizePath(path), "op", ev.Op.String())
	}
}
