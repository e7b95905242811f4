package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"slotwatch/pkg/logx"
)

// configWatcher calls onChange (debounced) whenever the config file changes.
// The watcher observes the containing directory: editors commonly replace the
// file via rename, which a file-level watch would miss.
type configWatcher struct {
	path     string
	onChange func()
	log      logx.Logger

	timerMu sync.Mutex
	timer   *time.Timer
}

func (w *configWatcher) run(ctx context.Context) {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	// Recreate the watcher with a small backoff when it breaks; fsnotify can
	// stop delivering events after certain editor write patterns.
	backoff := 250 * time.Millisecond
	const backoffMax = 5 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		fw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fw.Add(dir)
			if err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			w.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < backoffMax {
				backoff *= 2
			}
			continue
		}

		backoff = 250 * time.Millisecond
		w.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					w.debounce()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err != nil {
					w.log.Warn("config watch error", logx.Err(err))
				}
			}
		}

		_ = fw.Close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// debounce collapses the burst of events a single save produces, and avoids
// reading a partially written file.
func (w *configWatcher) debounce() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(250*time.Millisecond, func() {
		w.log.Debug("config change detected; reloading", logx.String("path", w.path))
		w.onChange()
	})
}
