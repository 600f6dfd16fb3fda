// Package prompt implements ports.PromptRepository over a tree of text
// files on disk, refreshed as files change via fsnotify rather than
// re-read on every request.
package prompt

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"go.uber.org/zap"
)

// Repository resolves "{root}/{language}/{promptID}.txt" and keeps an
// in-memory cache that a filesystem watcher invalidates on change.
type Repository struct {
	root   string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]string

	watcher *fsnotify.Watcher
}

// New builds a Repository rooted at root. It does a best-effort initial
// scan and starts a watcher; if the watcher cannot be created (e.g. the
// root doesn't exist yet) the repository still works, just without
// hot-reload, and logs the degradation.
func New(root string, logger *zap.Logger) (*Repository, error) {
	r := &Repository{
		root:   root,
		logger: logger,
		cache:  make(map[string]string),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if logger != nil {
			logger.Warn("prompt: hot-reload watcher unavailable", zap.Error(err))
		}
		return r, nil
	}
	r.watcher = watcher

	if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil && logger != nil {
		logger.Warn("prompt: initial directory scan failed", zap.Error(err))
	}

	go r.watch()
	return r, nil
}

func (r *Repository) watch() {
	if r.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.invalidate(event.Name)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if r.logger != nil {
				r.logger.Warn("prompt: watcher error", zap.Error(err))
			}
		}
	}
}

func (r *Repository) invalidate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, cachedPath := range r.pathsLocked() {
		if cachedPath == path {
			delete(r.cache, key)
		}
	}
}

// pathsLocked rebuilds the key->path mapping for cached entries; called
// with mu held. Kept separate from cache itself since the cache only
// stores text, and the invalidation path needs to map a changed file
// back to the cache key it corresponds to.
func (r *Repository) pathsLocked() map[string]string {
	out := make(map[string]string, len(r.cache))
	for key := range r.cache {
		promptID, language, ok := splitKey(key)
		if !ok {
			continue
		}
		out[key] = r.filePath(promptID, language)
	}
	return out
}

func cacheKey(promptID, language string) string {
	return language + "/" + promptID
}

func splitKey(key string) (promptID, language string, ok bool) {
	idx := indexByte(key, '/')
	if idx < 0 {
		return "", "", false
	}
	return key[idx+1:], key[:idx], true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func (r *Repository) filePath(promptID, language string) string {
	return filepath.Join(r.root, language, promptID+".txt")
}

// Get implements ports.PromptRepository.
func (r *Repository) Get(_ context.Context, promptID, language string) (string, error) {
	key := cacheKey(promptID, language)

	r.mu.RLock()
	if text, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return text, nil
	}
	r.mu.RUnlock()

	data, err := os.ReadFile(r.filePath(promptID, language))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ports.ErrPromptNotFound
		}
		return "", err
	}

	text := string(data)
	r.mu.Lock()
	r.cache[key] = text
	r.mu.Unlock()

	return text, nil
}

// Close stops the filesystem watcher, if one was started.
func (r *Repository) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
