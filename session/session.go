// Package session coordinates Put/Clear sequencing for an intern table:
// InternTable.Clear is documented as "not concurrent-safe with Put", so a
// profiler's control thread needs a lock-free way to know no sampler is
// currently inside Put before it calls Clear.
package session

import (
	"sync/atomic"
	"time"
)

// Table is the subset of intern.InternTable's surface Coordinator needs,
// kept narrow so this package does not import intern and create a cycle.
type Table interface {
	Clear()
}

// Coordinator tracks how many sampler threads are currently inside Put, so
// QuiesceAndClear can wait for that count to hit zero before calling
// Clear. EnterPut/ExitPut are themselves lock-free counter bumps, safe to
// bracket a signal-handler-context Put call.
type Coordinator struct {
	inFlight atomic.Int64
	stopped  atomic.Bool
}

// EnterPut records that a Put call is starting. The caller must call
// ExitPut exactly once for every EnterPut, typically via defer.
//
//go:nosplit
func (c *Coordinator) EnterPut() {
	c.inFlight.Add(1)
}

// ExitPut records that a Put call has returned.
//
//go:nosplit
func (c *Coordinator) ExitPut() {
	c.inFlight.Add(-1)
}

// InFlight reports how many Put calls are currently bracketed by
// EnterPut/ExitPut. Diagnostic only.
func (c *Coordinator) InFlight() int64 {
	return c.inFlight.Load()
}

// Stopped reports whether Stop has been called.
func (c *Coordinator) Stopped() bool {
	return c.stopped.Load()
}

// Stop marks the coordinator as shutting down. Sampler threads should
// check Stopped and stop issuing new Put calls; QuiesceAndClear does not
// require this but callers driving a clean shutdown typically want it.
func (c *Coordinator) Stop() {
	c.stopped.Store(true)
}

// QuiesceAndClear spins (yielding between checks) until no Put call is in
// flight, then calls table.Clear(). Returns false if the deadline elapses
// first, leaving table untouched.
func (c *Coordinator) QuiesceAndClear(table Table, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for c.inFlight.Load() != 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Microsecond)
	}
	table.Clear()
	return true
}
