package preview

import (
	"sync"
	"time"

	"github.com/starford/jstcode/internal/clock"
)

// BoundaryState is the state of the host error boundary.
type BoundaryState string

const (
	BoundaryOK              BoundaryState = "ok"
	BoundaryRetrying        BoundaryState = "retrying"
	BoundaryDismissRequired BoundaryState = "dismiss-required"
)

// Boundary defaults.
const (
	DefaultBoundaryRetries = 3
	DefaultBoundaryDelay   = 2 * time.Second
)

// BoundaryStatus is a snapshot of the boundary.
type BoundaryStatus struct {
	State    BoundaryState `json:"state"`
	Attempts int           `json:"attempts"`
	Max      int           `json:"max"`
	Error    string        `json:"error,omitempty"`
}

// Boundary isolates failures of the host document itself. Each failure
// shows an error panel and schedules a reload; after max reloads it stops
// and waits for Dismiss.
type Boundary struct {
	clock    clock.Clock
	max      int
	delay    time.Duration
	onRetry  func(attempt int)
	onChange func(BoundaryStatus)

	mu       sync.Mutex
	state    BoundaryState
	attempts int
	lastErr  string
	timer    *clock.Timer
}

// NewBoundary creates a boundary. onRetry runs when a reload is due and
// onChange after every transition; either may be nil.
func NewBoundary(clk clock.Clock, max int, delay time.Duration, onRetry func(int), onChange func(BoundaryStatus)) *Boundary {
	if max <= 0 {
		max = DefaultBoundaryRetries
	}
	if delay <= 0 {
		delay = DefaultBoundaryDelay
	}
	return &Boundary{
		clock:    clk,
		max:      max,
		delay:    delay,
		onRetry:  onRetry,
		onChange: onChange,
		state:    BoundaryOK,
	}
}

// Fail records a host rendering failure.
func (b *Boundary) Fail(msg string) {
	b.mu.Lock()
	b.lastErr = msg
	if b.state == BoundaryDismissRequired || b.timer != nil {
		b.mu.Unlock()
		return
	}
	if b.attempts >= b.max {
		b.state = BoundaryDismissRequired
	} else {
		b.attempts++
		b.state = BoundaryRetrying
		b.timer = b.clock.AfterFunc(b.delay, b.retry)
	}
	st := b.statusLocked()
	b.mu.Unlock()
	b.changed(st)
}

func (b *Boundary) retry() {
	b.mu.Lock()
	if b.timer == nil {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	attempt := b.attempts
	st := b.statusLocked()
	b.mu.Unlock()

	if b.onRetry != nil {
		b.onRetry(attempt)
	}
	b.changed(st)
}

// Reset clears the failure count; a fresh document starts a new budget.
func (b *Boundary) Reset() {
	b.reset(false)
}

// Dismiss acknowledges the panel after the retries ran out.
func (b *Boundary) Dismiss() {
	b.reset(true)
}

func (b *Boundary) reset(force bool) {
	b.mu.Lock()
	if b.state == BoundaryOK && b.attempts == 0 && !force {
		b.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.state = BoundaryOK
	b.attempts = 0
	b.lastErr = ""
	st := b.statusLocked()
	b.mu.Unlock()
	b.changed(st)
}

// Showing reports whether the error panel replaces the document.
func (b *Boundary) Showing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BoundaryDismissRequired || b.timer != nil
}

// Status returns the current status.
func (b *Boundary) Status() BoundaryStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Boundary) statusLocked() BoundaryStatus {
	return BoundaryStatus{State: b.state, Attempts: b.attempts, Max: b.max, Error: b.lastErr}
}

func (b *Boundary) changed(st BoundaryStatus) {
	if b.onChange != nil {
		b.onChange(st)
	}
}
