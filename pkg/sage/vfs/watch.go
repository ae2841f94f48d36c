package vfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to script files below a set of directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	exts     map[string]bool
	onChange func(path string)
	stdout   io.Writer
	stderr   io.Writer

	// Debounce rapid bursts of events from editors.
	Debounce time.Duration

	mu         sync.Mutex
	lastChange time.Time
}

// NewWatcher creates a watcher for dirs. Only files with one of exts (for
// example ".l") trigger onChange; an empty exts matches every file.
func NewWatcher(dirs []string, exts []string, onChange func(path string), stdout, stderr io.Writer) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fsWatcher,
		dirs:     dirs,
		exts:     make(map[string]bool),
		onChange: onChange,
		stdout:   stdout,
		stderr:   stderr,
		Debounce: 100 * time.Millisecond,
	}
	for _, e := range exts {
		w.exts[strings.ToLower(e)] = true
	}
	return w, nil
}

// Start begins watching. Events are delivered on a separate goroutine
// until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watchDirRecursive(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logInfo("watching: %s", dir)
	}
	go w.eventLoop(ctx)
	return nil
}

func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watchDirRecursive(event.Name)
					continue
				}
			}
			if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}

			w.mu.Lock()
			if time.Since(w.lastChange) < w.Debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange = time.Now()
			w.mu.Unlock()

			w.logInfo("changed: %s", event.Name)
			w.onChange(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) logInfo(format string, args ...any) {
	if w.stdout != nil {
		fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
	}
}

func (w *Watcher) logError(format string, args ...any) {
	if w.stderr != nil {
		fmt.Fprintf(w.stderr, "[WATCH ERROR] "+format+"\n", args...)
	}
}
