// Package testingx contains code useful for testing.
package testingx

import (
	"sync"
	"time"
)

// FakeClock implements time.Now in a controllable fashion: the
// returned time only changes when the test calls Advance.
//
// It's safe to use this struct from multiple goroutine contexts.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a new [*FakeClock] starting at zeroTime. When
// zeroTime is the zero value, we start from the current time.
func NewFakeClock(zeroTime time.Time) *FakeClock {
	if zeroTime.IsZero() {
		zeroTime = time.Now()
	}
	return &FakeClock{now: zeroTime}
}

// Now returns the current fake time.
func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// Advance moves the fake time forward by the given amount.
func (fc *FakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	fc.mu.Unlock()
}
