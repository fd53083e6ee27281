package loader

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/newtron-network/breathe/pkg/config"
)

// Watcher reloads a configuration file whenever it changes on disk: an
// fsnotify watcher goroutine that re-parses the file on every write or
// create event for it (events are not debounced) and delivers parsed
// configurations over a channel, with no checksum or version-history bookkeeping — that
// belongs to whatever calls Configure with the result, not to the loader.
type Watcher struct {
	path     string
	registry Registry
	watcher  *fsnotify.Watcher
}

// NewWatcher opens an fsnotify watcher on path's containing directory
// (watching the directory, not the file, survives editors that replace
// the file via rename-on-save).
func NewWatcher(path string, registry Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("loader: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("loader: watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{path: path, registry: registry, watcher: fsw}, nil
}

// Watch starts the watch goroutine and returns channels of successfully
// reloaded configurations and of errors (parse failures or fsnotify
// errors); both are closed when Close is called.
func (w *Watcher) Watch() (<-chan *config.Configuration, <-chan error) {
	changes := make(chan *config.Configuration, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(changes)
		defer close(errs)
		target := filepath.Clean(w.path)
		for {
			select {
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(w.path, w.registry)
				if err != nil {
					errs <- err
					continue
				}
				changes <- cfg
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			}
		}
	}()

	return changes, errs
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
