// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotGenerated reports an output file that no extraction run has
// written yet.
var ErrNotGenerated = errors.New("not yet generated")

// readFile is replaced in tests to interleave an invalidation with a read.
var readFile = os.ReadFile

// FileCache serves the files of one directory from memory. Entries are
// dropped when the watcher sees the file change; without a watcher the
// cache is disabled and every Get reads the disk.
type FileCache struct {
	dir     string
	enabled bool
	log     *zap.Logger

	mu    sync.RWMutex
	files map[string][]byte
	// gens counts invalidations per name. A read only fills the cache
	// when no invalidation happened while it was reading the disk.
	gens map[string]uint64
}

// NewFileCache returns a cache over dir. Caching is only enabled when
// enabled is true, which requires running Watch.
func NewFileCache(dir string, enabled bool, log *zap.Logger) *FileCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileCache{dir: dir, enabled: enabled, log: log, files: make(map[string][]byte), gens: make(map[string]uint64)}
}

// Get returns the contents of name. A missing file yields ErrNotGenerated.
func (c *FileCache) Get(name string) ([]byte, error) {
	var gen uint64
	if c.enabled {
		c.mu.RLock()
		data, ok := c.files[name]
		gen = c.gens[name]
		c.mu.RUnlock()
		if ok {
			return data, nil
		}
	}

	data, err := readFile(filepath.Join(c.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s %w", name, ErrNotGenerated)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if c.enabled {
		c.mu.Lock()
		if c.gens[name] == gen {
			c.files[name] = data
		}
		c.mu.Unlock()
	}
	return data, nil
}

// Invalidate drops name from the cache and reports whether it was cached.
func (c *FileCache) Invalidate(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[name]++
	_, ok := c.files[name]
	delete(c.files, name)
	return ok
}

// Watch invalidates entries as their files change until ctx is done.
func (c *FileCache) Watch(ctx context.Context) error {
	w, err := c.watcher()
	if err != nil {
		return err
	}
	defer w.Close()
	c.loop(ctx, w)
	return nil
}

func (c *FileCache) watcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", c.dir, err)
	}
	c.log.Debug("watching data directory", zap.String("dir", c.dir))
	return w, nil
}

func (c *FileCache) loop(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if c.Invalidate(filepath.Base(ev.Name)) {
				c.log.Debug("cached file invalidated", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Warn("watcher error", zap.Error(err))
		}
	}
}
