// Package gentable implements the open-addressed, power-of-two-sized hash
// table that backs one generation of the intern table: a zero-key-is-empty,
// atomically CAS-claimed array of (hash, trace pointer) slots with
// triangular probing.
package gentable

import (
	"sync/atomic"
	"unsafe"

	"traceintern/calltrace"
	"traceintern/pagemap"
)

// Generation is one fixed-capacity level of the intern table's chain.
// Keys and values are accessed atomically at word granularity; key == 0
// denotes an empty slot, guaranteed by the Pager's zero-fill contract so no
// explicit zeroing pass is needed on construction.
type Generation struct {
	Prev *Generation // older, smaller-capacity generation, or nil

	capacity uint32
	_        [60]byte // cache-line isolation: capacity is read-only after construction

	size atomic.Uint32
	_    [60]byte // cache-line isolation: size is written on every successful claim

	pager   pagemap.Pager
	keysMem unsafe.Pointer
	keys    []atomic.Uint64
	values  []atomic.Pointer[calltrace.CallTrace]
}

// Allocate builds a new generation of the given power-of-two capacity,
// chained to prev, backed by one zeroed page-aligned mapping sized to hold
// both the keys and values arrays.
func Allocate(pager pagemap.Pager, prev *Generation, capacity uint32) (*Generation, error) {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("gentable: capacity must be a power of two")
	}
	const wordSize = 8
	bytes := int(capacity) * wordSize * 2 // keys + values, one word each
	mem, err := pager.Alloc(bytes)
	if err != nil {
		return nil, err
	}

	g := &Generation{
		Prev:     prev,
		capacity: capacity,
		pager:    pager,
		keysMem:  mem,
	}
	keysBase := mem
	valuesBase := unsafe.Add(mem, uintptr(capacity)*wordSize)
	g.keys = unsafe.Slice((*atomic.Uint64)(keysBase), capacity)
	g.values = unsafe.Slice((*atomic.Pointer[calltrace.CallTrace])(valuesBase), capacity)
	return g, nil
}

// Capacity returns this generation's slot count.
func (g *Generation) Capacity() uint32 { return g.capacity }

// Size returns the current count of claimed (non-zero-key) slots.
func (g *Generation) Size() uint32 { return g.size.Load() }

// IncSize atomically increments the claimed-slot counter and returns the
// post-increment value. Its ordering relative to slot publication matters
// only for growth-trigger accuracy, never for correctness of an insert.
func (g *Generation) IncSize() uint32 { return g.size.Add(1) }

// Destroy unmaps this generation's backing memory and returns its
// predecessor, so a caller can walk the chain while destroying it.
func (g *Generation) Destroy() *Generation {
	if g.pager != nil && g.keysMem != nil {
		g.pager.Free(g.keysMem, int(g.capacity)*8*2)
	}
	return g.Prev
}

// Clear zeroes every key and value and resets size to 0. Only valid when no
// concurrent writer may observe a slot mid-reset — InternTable.Clear does
// not quiesce Put calls itself, so its callers must do so first.
func (g *Generation) Clear() {
	for i := range g.keys {
		g.keys[i].Store(0)
		g.values[i].Store(nil)
	}
	g.size.Store(0)
}

// probeStart returns the first slot a hash probes.
func (g *Generation) probeStart(hash uint64) uint32 {
	return uint32(hash) & (g.capacity - 1)
}

// probeNext advances slot by the triangular step (step is 1-based: the
// first miss advances by 1, the second by 2, and so on), matching the
// sequence that visits every slot of a power-of-two table exactly once.
func (g *Generation) probeNext(slot uint32, step uint32) uint32 {
	return (slot + step) & (g.capacity - 1)
}

// Find walks the probe sequence for hash and returns the published trace
// pointer on a hit, or nil on a miss (including on probe overflow).
func (g *Generation) Find(hash uint64) *calltrace.CallTrace {
	slot := g.probeStart(hash)
	for step := uint32(1); step <= g.capacity; step++ {
		key := g.keys[slot].Load()
		if key == hash {
			return g.values[slot].Load()
		}
		if key == 0 {
			return nil
		}
		slot = g.probeNext(slot, step)
	}
	return nil
}

// ClaimResult describes what CASProbe found at the slot it settled on.
type ClaimResult int

const (
	// Hit means hash was already present at the returned slot; its value
	// (ValueAt) may still be nil if a concurrent claimer hasn't published
	// yet, so a caller that reads it must allow for nil.
	Hit ClaimResult = iota
	// Claimed means this call won the CAS race and owns publication for
	// Slot; the caller must store a value and is responsible for growth
	// bookkeeping.
	Claimed
	// Overflow means the probe chain was exhausted before a hit or an
	// empty slot was found.
	Overflow
)

// CASProbe walks the probe sequence for hash, attempting to either find an
// existing entry or CAS-claim an empty slot. On CAS failure it re-reads the
// same slot and re-evaluates from the top without advancing the probe, per
// the interning contract.
func (g *Generation) CASProbe(hash uint64) (slot uint32, result ClaimResult) {
	slot = g.probeStart(hash)
	step := uint32(1)
	for step <= g.capacity {
		key := g.keys[slot].Load()
		switch {
		case key == hash:
			return slot, Hit
		case key == 0:
			if g.keys[slot].CompareAndSwap(0, hash) {
				return slot, Claimed
			}
			// Lost the race for this slot; re-read and re-evaluate it
			// without advancing the probe sequence.
			continue
		default:
			slot = g.probeNext(slot, step)
			step++
		}
	}
	return 0, Overflow
}

// PublishValue stores the resolved trace pointer for a slot this caller
// just claimed via CASProbe. A plain store is sufficient: readers observe
// the claimed key first (via an atomic load with the same ordering Go's
// atomic package always provides) and only then read the value.
func (g *Generation) PublishValue(slot uint32, trace *calltrace.CallTrace) {
	g.values[slot].Store(trace)
}

// KeyAt and ValueAt expose a slot's raw state for Collect; a value of nil
// with a non-zero key means the slot is CLAIMED but not yet PUBLISHED and
// must be skipped by a concurrent collector.
func (g *Generation) KeyAt(slot uint32) uint64 { return g.keys[slot].Load() }
func (g *Generation) ValueAt(slot uint32) *calltrace.CallTrace {
	return g.values[slot].Load()
}
