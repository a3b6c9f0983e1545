package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = time.Second

// InboxWatcher queues an extraction job for every document dropped into or
// rewritten in a directory. Events for one path are coalesced until the file
// has been quiet for the settle period, so a slow copy yields one job.
type InboxWatcher struct {
	dir        string
	queue      Enqueuer
	extensions []string
	settle     time.Duration
	logger     *slog.Logger
}

// NewInboxWatcher watches dir for files with one of extensions.
func NewInboxWatcher(dir string, queue Enqueuer, extensions []string) *InboxWatcher {
	return &InboxWatcher{
		dir:        dir,
		queue:      queue,
		extensions: extensions,
		settle:     defaultSettle,
		logger:     slog.Default().With("component", "inbox"),
	}
}

// Run watches until ctx is cancelled.
func (w *InboxWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", "dir", w.dir)

	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.isWatchedExtension(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				id, err := EnqueueExtract(ctx, w.queue, path)
				if err != nil {
					w.logger.Error("queueing inbox document failed", "path", path, "error", err)
					continue
				}
				w.logger.Info("inbox document queued", "path", path, "job_id", id)
			}
		}
	}
}

func (w *InboxWatcher) isWatchedExtension(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
