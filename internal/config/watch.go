package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events editors produce for one save.
const watchDebounce = 50 * time.Millisecond

// Watcher reports edits made to the config file by other programs while the
// session runs. The session still rewrites the file on exit, so the handler
// is expected to warn rather than reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	name     string
	onChange func(path string)
	onError  func(error)

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Watch starts watching path. The parent directory is watched because
// atomic saves replace the file's inode. onChange runs on the watcher's
// goroutine; onError may be nil.
func Watch(path string, onChange func(path string), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		name:     filepath.Clean(path),
		onChange: onChange,
		onError:  onError,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Stop ends the watch and waits for the event goroutine to exit. Safe to
// call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = true
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			if pending && w.onChange != nil {
				w.onChange(w.name)
			}
			pending = false

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}
