package idgen

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current wall-clock time in Unix milliseconds.
//
// The generator reads time only through this interface so that clock
// regression can be simulated in tests.
type Clock interface {
	NowMillis() int64
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() int64

// NowMillis calls f.
func (f ClockFunc) NowMillis() int64 {
	return f()
}

// SystemClock reads time.Now().
type SystemClock struct{}

// NowMillis returns the current Unix time in milliseconds.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ManualClock is a clock that only moves when told to.
//
// It is safe for concurrent use and intended for tests and simulations.
// An optional hook runs on every read, which lets a test make time pass
// while the generator is waiting.
type ManualClock struct {
	now    atomic.Int64
	onRead atomic.Pointer[func(*ManualClock)]
}

// NewManualClock creates a ManualClock starting at ms.
func NewManualClock(ms int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(ms)

	return c
}

// NowMillis returns the current manual time, running the read hook first.
func (c *ManualClock) NowMillis() int64 {
	if hook := c.onRead.Load(); hook != nil {
		(*hook)(c)
	}

	return c.now.Load()
}

// Set moves the clock to ms, forwards or backwards.
func (c *ManualClock) Set(ms int64) {
	c.now.Store(ms)
}

// Advance moves the clock by d (which may be negative).
func (c *ManualClock) Advance(d time.Duration) {
	c.now.Add(d.Milliseconds())
}

// OnRead installs fn to run before every NowMillis; nil removes it.
func (c *ManualClock) OnRead(fn func(*ManualClock)) {
	if fn == nil {
		c.onRead.Store(nil)
		return
	}
	c.onRead.Store(&fn)
}
