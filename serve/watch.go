package main

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 200 * time.Millisecond

// watchedFiles are the names in the config directory that trigger a reload.
var watchedFiles = map[string]bool{"config.toml": true, "prompt.md": true}

// configWatcher calls onChange after files in the config directory change.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	log      *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

func watchConfig(dir string, onChange func(), log *slog.Logger) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files by renaming.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	w := &configWatcher{watcher: watcher, onChange: onChange, log: log, done: make(chan struct{})}
	go w.loop()
	log.Debug("watching config", "dir", dir)
	return w, nil
}

func (w *configWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !watchedFiles[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.log.Debug("config changed", "file", event.Name, "op", event.Op.String())
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *configWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDelay, w.onChange)
}

// Close stops watching. A pending reload is dropped.
func (w *configWatcher) Close() {
	w.watcher.Close()
	<-w.done
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}
