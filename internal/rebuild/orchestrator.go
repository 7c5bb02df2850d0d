// Package rebuild schedules preview builds. Edits arm a cancel-and-restart
// debounce timer; every started build gets a ticket and only the result of
// the most recently issued ticket is applied.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/clock"
	"github.com/starford/jstcode/internal/metrics"
)

// State of the orchestrator.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateBuilding  State = "building"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Scope selects the debounce window.
type Scope int

const (
	// ScopeFile is a content edit or a tab switch.
	ScopeFile Scope = iota
	// ScopeProject is a change to the file set.
	ScopeProject
)

// MaxRetries is how many times the same failure may be retried before
// Retry backs off.
const MaxRetries = 3

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context, req bundler.Request) bundler.Result

// SourceFunc snapshots the build input when the timer fires. It reports
// false when there is nothing to build.
type SourceFunc func() (bundler.Request, bool)

// Sink receives applied results in ticket order.
type Sink interface {
	Apply(ticket uint64, res bundler.Result)
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State      State           `json:"state"`
	Issued     uint64          `json:"issued"`
	Applied    uint64          `json:"applied"`
	InFlight   int             `json:"inFlight"`
	Superseded uint64          `json:"superseded"`
	Retries    int             `json:"retries"`
	CanRetry   bool            `json:"canRetry"`
	Last       *bundler.Result `json:"last,omitempty"`
}

// Config holds the debounce windows.
type Config struct {
	FileDelay    time.Duration
	ProjectDelay time.Duration
}

// Orchestrator drives builds for one project.
type Orchestrator struct {
	log    *slog.Logger
	clock  clock.Clock
	cfg    Config
	build  BuildFunc
	source SourceFunc
	sink   Sink
	notify func(Status)

	ctx    context.Context
	cancel context.CancelFunc

	applyMu sync.Mutex

	mu         sync.Mutex
	timer      *clock.Timer
	gen        uint64
	armed      bool
	issued     uint64
	applied    uint64
	inFlight   int
	superseded uint64
	outcome    State
	last       *bundler.Result
	retryKey   string
	retries    int
	closed     bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithNotify registers a callback invoked after every state change.
func WithNotify(fn func(Status)) Option {
	return func(o *Orchestrator) { o.notify = fn }
}

// New creates an orchestrator. Builds run under a context that is cancelled
// by Close.
func New(log *slog.Logger, cfg Config, build BuildFunc, source SourceFunc, sink Sink, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		log:     log,
		clock:   clock.Real(),
		cfg:     cfg,
		build:   build,
		source:  source,
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		outcome: StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Schedule records an edit: the pending timer is cancelled and re-armed
// with the scope's window, and the retry back-off is reset.
func (o *Orchestrator) Schedule(scope Scope) {
	delay := o.cfg.FileDelay
	if scope == ScopeProject {
		delay = o.cfg.ProjectDelay
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.retryKey = ""
	o.retries = 0
	gen := o.arm(delay)
	st := o.statusLocked()
	o.mu.Unlock()

	o.emit(st)
	if delay <= 0 {
		o.fire(gen)
	}
}

// Retry starts a build immediately. Once the same failure has been retried
// MaxRetries times in a row it returns ErrRetryBackoff until the next edit.
func (o *Orchestrator) Retry() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("rebuild: retry: orchestrator closed")
	}
	if o.last != nil && !o.last.OK {
		key := o.last.Key()
		if key != o.retryKey {
			o.retryKey = key
			o.retries = 0
		}
		if o.retries >= MaxRetries {
			o.mu.Unlock()
			metrics.RecordRetryRejected()
			return fmt.Errorf("rebuild: retry: %w", apperr.ErrRetryBackoff)
		}
		o.retries++
	}
	gen := o.arm(0)
	st := o.statusLocked()
	o.mu.Unlock()

	o.emit(st)
	o.fire(gen)
	return nil
}

// arm replaces the pending timer. With delay <= 0 the caller fires.
func (o *Orchestrator) arm(delay time.Duration) uint64 {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.gen++
	o.armed = true
	gen := o.gen
	if delay > 0 {
		o.timer = o.clock.AfterFunc(delay, func() { o.fire(gen) })
	}
	return gen
}

func (o *Orchestrator) fire(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen || !o.armed {
		o.mu.Unlock()
		return
	}
	o.armed = false
	o.timer = nil

	req, ok := o.source()
	if !ok {
		o.outcome = StateIdle
		st := o.statusLocked()
		o.mu.Unlock()
		o.emit(st)
		return
	}
	o.issued++
	ticket := o.issued
	o.inFlight++
	st := o.statusLocked()
	o.mu.Unlock()

	o.log.Debug("rebuild: build started",
		slog.Uint64("ticket", ticket),
		slog.String("entry", req.Entry))
	o.emit(st)
	go o.run(ticket, req)
}

func (o *Orchestrator) run(ticket uint64, req bundler.Request) {
	res := o.build(o.ctx, req)

	outcome := "ok"
	if !res.OK {
		outcome = string(res.Stage)
	}
	metrics.RecordBuild(outcome, res.Duration)

	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	o.mu.Lock()
	o.inFlight--
	if ticket != o.issued || o.closed {
		o.superseded++
		st := o.statusLocked()
		o.mu.Unlock()
		metrics.RecordSuperseded()
		o.log.Debug("rebuild: stale result dropped",
			slog.Uint64("ticket", ticket),
			slog.Uint64("issued", st.Issued))
		o.emit(st)
		return
	}
	o.applied = ticket
	o.last = &res
	if res.OK {
		o.outcome = StateSucceeded
	} else {
		o.outcome = StateFailed
	}
	st := o.statusLocked()
	o.mu.Unlock()

	if res.OK {
		o.log.Info("rebuild: build applied",
			slog.Uint64("ticket", ticket),
			slog.String("entry", res.Entry),
			slog.Duration("took", res.Duration))
	} else {
		o.log.Info("rebuild: build failed",
			slog.Uint64("ticket", ticket),
			slog.String("stage", string(res.Stage)),
			slog.String("entry", res.Entry))
	}
	o.sink.Apply(ticket, res)
	o.emit(st)
}

// Status returns the current status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	st := Status{
		State:      o.outcome,
		Issued:     o.issued,
		Applied:    o.applied,
		InFlight:   o.inFlight,
		Superseded: o.superseded,
		Retries:    o.retries,
		CanRetry:   true,
	}
	switch {
	case o.armed:
		st.State = StateScheduled
	case o.inFlight > 0 && o.issued > o.applied:
		st.State = StateBuilding
	}
	if o.last != nil {
		last := *o.last
		last.Bundle = ""
		last.Pages = nil
		last.Assets = nil
		st.Last = &last
		if !last.OK && last.Key() == o.retryKey && o.retries >= MaxRetries {
			st.CanRetry = false
		}
	}
	return st
}

func (o *Orchestrator) emit(st Status) {
	if o.notify != nil {
		o.notify(st)
	}
}

// Close stops the timer and cancels in-flight builds. Results that still
// arrive are dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.armed = false
	o.mu.Unlock()
	o.cancel()
}
