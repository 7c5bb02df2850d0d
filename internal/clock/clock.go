// Package clock abstracts time so debounce and retry timers can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by timers in this module.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f after d. With d <= 0 a real clock calls f on a new
	// goroutine and a fake clock calls it synchronously.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer cancels a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the pending call. It reports whether the call was still pending.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
