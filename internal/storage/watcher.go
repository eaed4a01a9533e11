// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// =============================================================================
// FOREIGN WRITE DETECTION
// =============================================================================

// DefaultWatchDebounce is how long the file must be quiet before it is checked.
const DefaultWatchDebounce = 150 * time.Millisecond

// ExternalChange describes a modification of the history file that this
// process did not make.
type ExternalChange struct {
	Path    string
	Removed bool
	At      time.Time
}

// Watcher reports writes to the history file made by another process. It
// does not reload or merge anything: the next Save from this process still
// overwrites the file.
type Watcher struct {
	store    *HistoryStore
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(ExternalChange)

	mu       sync.Mutex
	pending  time.Time
	reported [sha256.Size]byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for store's file. onChange is called from a
// background goroutine.
func NewWatcher(store *HistoryStore, debounce time.Duration, onChange func(ExternalChange)) (*Watcher, error) {
	absPath, err := filepath.Abs(store.Path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve history path")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:    store,
		path:     absPath,
		watcher:  fw,
		debounce: debounce,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching. The parent directory is watched rather than the
// file, since an atomic save replaces the file's inode.
func (w *Watcher) Watch() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create history directory")
	}
	if err := w.watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and waits for the background goroutines to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("history watcher stopped")
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("history watcher error")
		}
	}
}

func (w *Watcher) processPending() {
	defer w.wg.Done()

	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case now := <-ticker.C:
			w.mu.Lock()
			ready := !w.pending.IsZero() && now.Sub(w.pending) >= w.debounce
			if ready {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if ready {
				w.check(now)
			}
		}
	}
}

// check compares the file with what this process last read or wrote.
func (w *Watcher) check(now time.Time) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", w.path).Debug("history watcher read failed")
			return
		}
		if w.store.snapshot().known {
			w.report(ExternalChange{Path: w.path, Removed: true, At: now}, sha256.Sum256(nil))
		}
		return
	}

	if w.store.isOwnContent(data) {
		return
	}
	w.report(ExternalChange{Path: w.path, At: now}, sha256.Sum256(data))
}

// report delivers a change once per distinct file content.
func (w *Watcher) report(change ExternalChange, sum [sha256.Size]byte) {
	w.mu.Lock()
	if sum == w.reported {
		w.mu.Unlock()
		return
	}
	w.reported = sum
	w.mu.Unlock()

	log.WithFields(log.Fields{
		"path":    change.Path,
		"removed": change.Removed,
	}).Warn("history file changed by another process; the next save will overwrite it")

	if w.onChange != nil {
		w.onChange(change)
	}
}
