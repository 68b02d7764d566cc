package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/extract"
)

// ErrWatcherFailed indicates the filesystem watcher could not be set up.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher re-ingests files under a root as they change.
type Watcher struct {
	orch     *Orchestrator
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	// exclude holds the configured and ignore file patterns; it is reloaded
	// when the ignore file changes.
	exclude []string

	// OnIngest, if set, is called after every debounced re-ingestion.
	OnIngest func(*Summary, error)
}

// NewWatcher watches every directory under root that the walk would visit.
func NewWatcher(orch *Orchestrator, root string, debounce time.Duration) (*Watcher, error) {
	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{
		orch:     orch,
		root:     root,
		debounce: debounce,
		watcher:  fw,
		logger:   orch.logger.Named("watch"),
		exclude:  orch.excludePatterns(root),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return w, nil
}

// addTree adds dir and its subdirectories, skipping the ones the walk skips.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// Run processes events until ctx is done. Changed files are collected and
// re-ingested together once no event has arrived for the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handle(event, pending) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timerC:
			timerC = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)

			summary, err := w.orch.IngestFiles(ctx, w.root, paths)
			if err != nil {
				w.logger.Warn("re-ingestion failed", zap.Error(err))
			} else {
				w.logger.Info("re-ingested changed files",
					zap.Int("files", summary.Files),
					zap.Int("stored", summary.Stored),
					zap.Int("failed_docs", summary.FailedDocs),
				)
			}
			if w.OnIngest != nil {
				w.OnIngest(summary, err)
			}
		}
	}
}

// handle records a relevant event in pending and reports whether it did.
func (w *Watcher) handle(event fsnotify.Event, pending map[string]struct{}) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if isDir, err := statDir(event.Name); err == nil && isDir {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
			}
			// Files may have been written before the watch was added.
			added := false
			_ = filepath.WalkDir(event.Name, func(p string, d fs.DirEntry, err error) error {
				if err == nil && d.Type().IsRegular() && w.queue(p, pending) {
					added = true
				}
				return nil
			})
			return added
		}
	}
	return w.queue(event.Name, pending)
}

func (w *Watcher) queue(abs string, pending map[string]struct{}) bool {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == IgnoreFile {
		w.exclude = w.orch.excludePatterns(w.root)
		return false
	}
	if extract.KindFor(rel) == extract.KindUnknown || excluded(rel, w.exclude) {
		return false
	}
	pending[rel] = struct{}{}
	return true
}
