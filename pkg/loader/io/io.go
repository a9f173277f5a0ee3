package io

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/OFFIS-RIT/coordnet/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOTableFileLoader loads tables directly from the local filesystem with
// caching. Relative paths are resolved against root.
type IOTableFileLoader struct {
	root string

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOTableFileLoader creates a new filesystem-based table loader.
func NewIOTableFileLoader(root string) *IOTableFileLoader {
	return &IOTableFileLoader{
		root:  root,
		cache: make(map[string][]byte),
	}
}

// GetFileBytes reads the file content from the filesystem. Results are cached.
func (l *IOTableFileLoader) GetFileBytes(ctx context.Context, file loader.TableFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := file.FilePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.root, path)
		}
		result, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
