package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tmpPrefix = ".jstcode-tmp-"

// FS stores each key as a file under a root directory.
type FS struct {
	root  string
	quota int64
	mu    sync.Mutex
}

// NewFS creates an FS store rooted at dir, creating the directory when it
// does not exist.
func NewFS(dir string, quota int64) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kvstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kvstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kvstore: root is not a directory: %s", abs)
	}
	return &FS{root: abs, quota: quota}, nil
}

// keyPath maps a key to a file directly under root. Keys may not contain
// separators or start with a dot.
func (f *FS) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("kvstore: invalid key %q", key)
	}
	return filepath.Join(f.root, key), nil
}

func (f *FS) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := f.keyPath(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: read %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes atomically: tmp file, fsync, rename.
func (f *FS) Set(_ context.Context, key string, value []byte) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.quota > 0 {
		usage, err := f.usage()
		if err != nil {
			return err
		}
		var old int64
		if info, err := os.Stat(p); err == nil {
			old = info.Size()
		}
		if err := checkQuota(f.quota, usage, old, int64(len(value))); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(f.root, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("kvstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("kvstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kvstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kvstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("kvstore: rename: %w", err)
	}
	success = true
	return nil
}

func (f *FS) Delete(_ context.Context, key string) error {
	p, err := f.keyPath(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

// Clear removes every stored key. The root directory itself stays.
func (f *FS) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("kvstore: clear: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(f.root, e.Name())); err != nil {
			return fmt.Errorf("kvstore: clear %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (f *FS) Close() error { return nil }

func (f *FS) usage() (int64, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return 0, fmt.Errorf("kvstore: usage: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
