// Package persist saves the project snapshot to a kvstore in the
// background and restores it at startup.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/checksum"
	"github.com/starford/jstcode/internal/kvstore"
	"github.com/starford/jstcode/internal/metrics"
	"github.com/starford/jstcode/internal/project"
)

// Defaults.
const (
	DefaultKey      = "jstcode-project"
	DefaultMaxBytes = 5 << 20
)

// Write outcomes, also used as metric labels.
const (
	ResultWritten   = "written"
	ResultUnchanged = "unchanged"
	ResultTooLarge  = "too_large"
	ResultRetried   = "retried"
	ResultError     = "error"
)

// Config controls where and how much is persisted.
type Config struct {
	Key      string
	MaxBytes int64
}

// Persister writes the latest project state with a single writer.
// Save never blocks; a state saved while a write is in progress replaces
// any state still waiting.
type Persister struct {
	log *slog.Logger
	kv  kvstore.Store
	cfg Config

	mu      sync.Mutex
	pending *project.State
	digest  string
	wake    chan struct{}
}

// New creates a persister over kv.
func New(log *slog.Logger, kv kvstore.Store, cfg Config) *Persister {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Persister{
		log:  log,
		kv:   kv,
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
}

// Save queues st for writing.
func (p *Persister) Save(st *project.State) {
	p.mu.Lock()
	p.pending = st
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes queued states until ctx is cancelled, then flushes whatever
// is still pending.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if _, err := p.Flush(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn("persist: final flush", slog.String("error", err.Error()))
			}
			return nil
		case <-p.wake:
			if _, err := p.Flush(ctx); err != nil {
				p.log.Warn("persist: save failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush writes the pending state now. It returns "" when nothing was
// pending.
func (p *Persister) Flush(ctx context.Context) (string, error) {
	p.mu.Lock()
	st := p.pending
	p.pending = nil
	p.mu.Unlock()
	if st == nil {
		return "", nil
	}
	result, size, err := p.write(ctx, st)
	metrics.RecordSnapshotWrite(result, size)
	return result, err
}

func (p *Persister) write(ctx context.Context, st *project.State) (string, int, error) {
	blob, err := Encode(st.Export())
	if err != nil {
		return ResultError, 0, err
	}
	size := len(blob)
	if int64(size) > p.cfg.MaxBytes {
		p.log.Warn("persist: snapshot too large, not saved",
			slog.Int("bytes", size),
			slog.Int64("max_bytes", p.cfg.MaxBytes),
		)
		return ResultTooLarge, size, nil
	}

	digest := checksum.Sum(blob)
	p.mu.Lock()
	same := digest == p.digest
	p.mu.Unlock()
	if same {
		return ResultUnchanged, size, nil
	}

	result := ResultWritten
	err = p.kv.Set(ctx, p.cfg.Key, blob)
	if errors.Is(err, apperr.ErrQuotaExceeded) {
		// The quota already discounts the value being replaced, so only
		// other keys can free room. The store holds nothing but snapshots.
		p.log.Warn("persist: quota exceeded, clearing store and retrying",
			slog.Int("bytes", size))
		if err := p.kv.Clear(ctx); err != nil {
			p.forget()
			return ResultError, size, fmt.Errorf("persist: clear store: %w", err)
		}
		result = ResultRetried
		err = p.kv.Set(ctx, p.cfg.Key, blob)
	}
	if err != nil {
		p.forget()
		return ResultError, size, fmt.Errorf("persist: write %s: %w", p.cfg.Key, err)
	}

	p.mu.Lock()
	p.digest = digest
	p.mu.Unlock()
	p.log.Debug("persist: snapshot saved",
		slog.Int("bytes", size),
		slog.Uint64("version", st.Version()),
		slog.String("result", result),
	)
	return result, size, nil
}

// forget drops the last digest, so the next save writes even if the
// content did not change.
func (p *Persister) forget() {
	p.mu.Lock()
	p.digest = ""
	p.mu.Unlock()
}

// Load restores the saved snapshot into store. It reports false when
// nothing was saved. A corrupt or inconsistent snapshot returns an error
// wrapping apperr.ErrInvalidSnapshot and leaves store untouched.
func (p *Persister) Load(ctx context.Context, store *project.Store) (bool, error) {
	blob, ok, err := p.kv.Get(ctx, p.cfg.Key)
	if err != nil {
		return false, fmt.Errorf("persist: read %s: %w", p.cfg.Key, err)
	}
	if !ok {
		return false, nil
	}
	snap, err := Decode(blob)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	p.digest = checksum.Sum(blob)
	p.mu.Unlock()
	if err := store.Restore(snap); err != nil {
		p.forget()
		return false, err
	}
	p.log.Info("persist: snapshot restored",
		slog.Int("bytes", len(blob)),
		slog.Int("nodes", len(snap.Nodes)),
	)
	return true, nil
}

// Discard removes the saved snapshot.
func (p *Persister) Discard(ctx context.Context) error {
	p.forget()
	if err := p.kv.Delete(ctx, p.cfg.Key); err != nil {
		return fmt.Errorf("persist: discard: %w", err)
	}
	return nil
}
