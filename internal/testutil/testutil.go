// Package testutil provides shared test helpers for setting up workspaces and stores.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/clock"
	"github.com/starford/jstcode/internal/kvstore"
	"github.com/starford/jstcode/internal/workspace"
)

// Debounce windows used by TestWorkspace.
const (
	FileDelay    = 300 * time.Millisecond
	ProjectDelay = time.Second
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Builder is a bundler stand-in. Entries containing "syntax error" fail in
// the transform stage; everything else succeeds with a one-line bundle.
type Builder struct {
	mu       sync.Mutex
	requests []bundler.Request
}

// Build implements workspace.Builder.
func (b *Builder) Build(_ context.Context, req bundler.Request) bundler.Result {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if strings.Contains(req.Files[req.Entry], "syntax error") {
		res := bundler.Failed(bundler.StageTransform, "Unexpected token")
		res.Entry = req.Entry
		return res
	}
	return bundler.Result{OK: true, Format: bundler.FormatScript, Entry: req.Entry, Bundle: "console.log(\"built " + req.Entry + "\")"}
}

// Requests returns a copy of every request seen so far.
func (b *Builder) Requests() []bundler.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bundler.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// TestWorkspace creates a workspace driven by a fake clock and a stub
// builder. Builds only run when the clock is advanced or on Retry.
func TestWorkspace(t *testing.T, opts ...workspace.Option) (*workspace.Workspace, *clock.FakeClock, *Builder) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := &Builder{}
	opts = append([]workspace.Option{workspace.WithClock(clk)}, opts...)
	ws := workspace.New(Logger(), workspace.Config{FileDelay: FileDelay, ProjectDelay: ProjectDelay}, b, opts...)
	t.Cleanup(ws.Close)
	return ws, clk, b
}

// TestKV creates a temporary SQLite key-value store that is automatically closed.
func TestKV(t *testing.T) *kvstore.SQLite {
	t.Helper()
	kv, err := kvstore.OpenSQLite(filepath.Join(t.TempDir(), "jstcode-test.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// Eventually polls fn until it returns true or two seconds pass.
func Eventually(t *testing.T, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
