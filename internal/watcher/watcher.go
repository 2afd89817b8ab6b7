// Package watcher monitors a vault directory tree for note changes and
// emits debounced change notifications, so the worker can trigger
// re-clustering without polling.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce batches rapid successive edits into one notification.
const DefaultDebounce = 2 * time.Second

// Watcher monitors a vault for markdown file changes. Change events for
// one burst of edits are coalesced into a single callback.
type Watcher struct {
	vaultPath string
	onChange  func()
	watcher   *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
	debounce  time.Duration
}

// New creates a Watcher over the given vault root. The onChange callback
// fires after the debounce window closes.
func New(vaultPath string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		vaultPath: vaultPath,
		onChange:  onChange,
		watcher:   fsw,
		ctx:       ctx,
		cancel:    cancel,
		debounce:  DefaultDebounce,
	}, nil
}

// Start begins watching the vault tree.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.vaultPath); err != nil {
		log.Warn().Err(err).Str("path", w.vaultPath).Msg("Failed to add initial watches")
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

// addTree registers watches on the directory and all its subdirectories.
// Hidden directories (like .obsidian or .git) are skipped.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// watchLoop is the main event loop.
func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// New directories join the watch set.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !strings.HasPrefix(filepath.Base(event.Name), ".") {
						_ = w.watcher.Add(event.Name)
					}
					continue
				}
			}

			if !isNoteEvent(event) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				log.Debug().Str("vault", w.vaultPath).Msg("Vault change detected")
				w.onChange()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// isNoteEvent reports whether the event concerns a markdown note.
func isNoteEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".md")
}
