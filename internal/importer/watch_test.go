package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type mapTarget struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *mapTarget) Files() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.files))
	for k, v := range m.files {
		out[k] = v
	}
	return out
}

func (m *mapTarget) Put(p, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = content
	return nil
}

func (m *mapTarget) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}

func (m *mapTarget) get(p string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.files[p]
	return v, ok
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string, target *mapTarget) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Watch(ctx, root, Limits{}, target, logger)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatchInitialSync(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>hi</p>"), 0o644)
	target := &mapTarget{files: map[string]string{"stale.js": "old"}}

	startWatch(t, root, target)

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		_, stale := target.get("stale.js")
		body, ok := target.get("index.html")
		return !stale && ok && body == "<p>hi</p>"
	}, "initial sync did not mirror the directory")
}

func TestWatchCreateUpdateDelete(t *testing.T) {
	root := t.TempDir()
	target := &mapTarget{files: map[string]string{}}
	startWatch(t, root, target)

	p := filepath.Join(root, "app.js")
	_ = os.WriteFile(p, []byte("v1"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		body, _ := target.get("app.js")
		return body == "v1"
	}, "new file not synced")

	_ = os.WriteFile(p, []byte("v2"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		body, _ := target.get("app.js")
		return body == "v2"
	}, "update not synced")

	_ = os.Remove(p)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := target.get("app.js")
		return !ok
	}, "delete not synced")
}

func TestWatchNewDirectoryAndRename(t *testing.T) {
	root := t.TempDir()
	target := &mapTarget{files: map[string]string{}}
	startWatch(t, root, target)

	dir := filepath.Join(root, "src")
	_ = os.MkdirAll(dir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "App.tsx"), []byte("export default 1"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := target.get("src/App.tsx")
		return ok
	}, "file in new directory not synced")

	_ = os.Rename(filepath.Join(dir, "App.tsx"), filepath.Join(dir, "Main.tsx"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, oldOK := target.get("src/App.tsx")
		_, newOK := target.get("src/Main.tsx")
		return !oldOK && newOK
	}, "rename not reconciled")
}

func TestWatchIgnoresNonCodeFiles(t *testing.T) {
	root := t.TempDir()
	target := &mapTarget{files: map[string]string{}}
	startWatch(t, root, target)

	_ = os.WriteFile(filepath.Join(root, "photo.png"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "main.js"), []byte("y"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := target.get("main.js")
		return ok
	}, "code file not synced")
	if _, ok := target.get("photo.png"); ok {
		t.Error("non-code file synced")
	}
}
