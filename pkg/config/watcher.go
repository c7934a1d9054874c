package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
)

// Watcher reports changes to config files. It watches the parent directory
// so editors that save by renaming a temp file over the original are seen.
type Watcher struct {
	fs  *fsnotify.Watcher
	log logger.Logger

	mu    sync.Mutex
	files map[string]context.Context // absolute path -> registration
	dirs  map[string]int             // directory -> registered files in it
	subs  []func()

	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts a Watcher that logs through the logger carried by ctx.
func NewWatcher(ctx context.Context) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fs:    fs,
		log:   logger.FromContext(ctx),
		files: map[string]context.Context{},
		dirs:  map[string]int{},
		done:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch registers path until ctx is done or the Watcher is closed.
func (w *Watcher) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("failed to watch file: %w", err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, known := w.files[abs]; !known {
		if w.dirs[dir] == 0 {
			if err := w.fs.Add(dir); err != nil {
				return fmt.Errorf("failed to watch file: %w", err)
			}
		}
		w.dirs[dir]++
	}
	// the latest registration owns the path
	w.files[abs] = ctx
	context.AfterFunc(ctx, func() { w.forget(ctx, abs) })
	return nil
}

func (w *Watcher) forget(ctx context.Context, abs string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[abs] != ctx {
		return
	}
	delete(w.files, abs)
	dir := filepath.Dir(abs)
	if w.dirs[dir]--; w.dirs[dir] > 0 {
		return
	}
	delete(w.dirs, dir)
	if err := w.fs.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		w.log.Debug("failed to stop watching config directory", "dir", dir, "error", err)
	}
}

// OnChange subscribes fn to changes of any registered file.
func (w *Watcher) OnChange(fn func()) {
	w.mu.Lock()
	w.subs = append(w.subs, fn)
	w.mu.Unlock()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			ctx, watched := w.files[ev.Name]
			subs := slices.Clone(w.subs)
			w.mu.Unlock()
			if !watched || ctx.Err() != nil {
				continue
			}
			w.log.Debug("config file changed", "path", ev.Name)
			for _, fn := range subs {
				if fn != nil {
					fn()
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops event delivery. Later calls return nil.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if cerr := w.fs.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
	})
	return err
}
