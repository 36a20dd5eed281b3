package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports writes to a database file, including its WAL and journal
// siblings, so waiters wake up when any process touches the store.
type FileWatcher struct {
	base    string
	watcher *fsnotify.Watcher
	changes *broadcaster

	done      chan struct{}
	closeOnce sync.Once
}

// WatchFile starts watching the directory that holds path.
func WatchFile(path string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	fw := &FileWatcher{
		base:    filepath.Base(path),
		watcher: watcher,
		changes: newBroadcaster(),
		done:    make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), fw.base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fw.changes.notify()
			}
		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Ignore errors, keep watching
		}
	}
}

// Changed returns a channel closed on the next write to the watched file.
func (fw *FileWatcher) Changed() <-chan struct{} {
	return fw.changes.wait()
}

// Close stops the watcher.
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}
