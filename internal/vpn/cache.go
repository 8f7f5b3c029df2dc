package vpn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const artifactFileMode os.FileMode = 0o600

// Cache owns the directory where rendered artifacts are persisted.
// Writers and deleters of the same path are serialized.
type Cache struct {
	dir         string
	defaultPath string

	mu    sync.Mutex
	locks map[string]*pathLock
}

// pathLock is dropped from Cache.locks once no caller holds or waits on it.
type pathLock struct {
	mu   sync.Mutex
	refs int
}

// NewCache creates a cache rooted at dir whose default artifact is dir/fileName.
func NewCache(dir, fileName string) *Cache {
	dir = filepath.Clean(strings.TrimSpace(dir))
	return &Cache{
		dir:         dir,
		defaultPath: filepath.Join(dir, fileName),
		locks:       make(map[string]*pathLock),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// DefaultPath returns the artifact path used when callers do not supply one.
func (c *Cache) DefaultPath() string {
	return c.defaultPath
}

// Resolve returns path, or the default path when path is blank.
func (c *Cache) Resolve(path string) string {
	if strings.TrimSpace(path) == "" {
		return c.defaultPath
	}
	return path
}

// EnsureDir creates the cache directory if it does not exist yet.
func (c *Cache) EnsureDir() error {
	return os.MkdirAll(c.dir, 0o700)
}

// Write stores content at path, creating the parent directory when absent.
// Readers observe either the previous file or the complete new one.
func (c *Cache) Write(path string, content []byte) error {
	unlock := c.lock(path)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return writeFileAtomic(path, content, artifactFileMode)
}

// Delete removes the artifact at path. A missing file is an error.
func (c *Cache) Delete(path string) error {
	unlock := c.lock(path)
	defer unlock()

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystem, err)
	}
	return nil
}

func (c *Cache) lock(path string) func() {
	key := filepath.Clean(path)
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &pathLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
