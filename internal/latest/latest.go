// Package latest implements a single-producer/single-consumer
// latest-value cell with an edge-triggered "updated" flag.
//
// This is the sole state shared across the driver/control boundary: the
// sensor callback Puts the newest frame handle, the control loop Takes
// it. The cell never queues — a new value overwrites an unconsumed one
// (drop counter incremented), keeping the consumer on the latest frame.
//
// Unlike a mailbox there is no blocking: the control loop polls at its
// own tick rate, so Take returns immediately with a freshness flag that
// clears on read. The value handle itself is sticky — a second Take
// without a new Put returns the same (now stale) handle with fresh=false.
package latest

import "sync"

// Cell is the shared handle+flag pair. The mutex makes the pair safe
// across true parallel goroutines; the single-reader discipline (exactly
// one consumer calling Take) is still the caller's contract, since
// read-and-clear semantics cannot tolerate two observers.
type Cell[T any] struct {
	mu    sync.Mutex
	v     T
	has   bool
	fresh bool
	puts  uint64
	drops uint64
}

// Put stores v as the latest value and raises the updated flag.
// Non-blocking; safe to call from the producer (driver) goroutine.
// Overwriting a value the consumer never took counts as a drop.
func (c *Cell[T]) Put(v T) {
	c.mu.Lock()
	if c.fresh {
		c.drops++
	}
	c.v = v
	c.has = true
	c.fresh = true
	c.puts++
	c.mu.Unlock()
}

// Take returns the latest value with read-and-clear freshness semantics:
// fresh is true exactly once per Put. ok is false only before the first
// Put. The returned handle may be stale (same value as the previous
// Take) when fresh is false.
func (c *Cell[T]) Take() (v T, fresh, ok bool) {
	c.mu.Lock()
	v, fresh, ok = c.v, c.fresh, c.has
	c.fresh = false
	c.mu.Unlock()
	return v, fresh, ok
}

// Peek returns the latest value without consuming freshness. For
// display fallback paths that only need "whatever is current".
func (c *Cell[T]) Peek() (v T, ok bool) {
	c.mu.Lock()
	v, ok = c.v, c.has
	c.mu.Unlock()
	return v, ok
}

// Puts returns the lifetime count of values stored.
func (c *Cell[T]) Puts() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// Drops returns the lifetime count of values overwritten unconsumed.
// Drops are expected when the producer outpaces the consumer tick; they
// indicate latest-frame semantics working, not an error.
func (c *Cell[T]) Drops() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drops
}

// Reset clears the cell to its empty state (no handle, no freshness).
// Counters are preserved; they are lifetime diagnostics.
func (c *Cell[T]) Reset() {
	c.mu.Lock()
	var zero T
	c.v = zero
	c.has = false
	c.fresh = false
	c.mu.Unlock()
}
