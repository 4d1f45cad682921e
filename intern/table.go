// Package intern implements the concurrent call-trace interning table: a
// singly-linked chain of gentable.Generations, newest first, that
// deduplicates sampled call stacks into small stable identifiers without
// ever blocking or touching a general-purpose allocator on the hot path.
package intern

import (
	"sync/atomic"

	"traceintern/calltrace"
	"traceintern/gentable"
	"traceintern/linalloc"
	"traceintern/pagemap"
)

// InternTable is an owned object, not a process-wide singleton: the
// embedding profiler holds exactly one per profile session.
type InternTable struct {
	pager   pagemap.Pager
	current atomic.Pointer[gentable.Generation]
	alloc   *linalloc.Allocator
}

// New constructs an InternTable with its first generation already
// allocated, backed by pager for both the generation chain and the linear
// allocator's chunks.
func New(pager pagemap.Pager) *InternTable {
	first, err := gentable.Allocate(pager, nil, InitialCapacity)
	if err != nil {
		// Construction-time failure: nothing has been handed out yet, so
		// there is no safe in-band signal beyond a hard failure. A
		// profiler session cannot proceed without its interning table.
		panic(err)
	}
	t := &InternTable{
		pager: pager,
		alloc: linalloc.New(pager, linalloc.DefaultChunkSize),
	}
	t.current.Store(first)
	return t
}

// NewDefault constructs an InternTable backed by the production mmap
// Pager.
func NewDefault() *InternTable {
	return New(pagemap.NewMmapPager())
}

// Put interns frames, returning a stable, dense, per-generation identifier.
// Wait-free on an uncontended slot, lock-free overall. Returns 0 on probe
// overflow (the current generation is saturated and growth has not yet
// published) or on linear-allocator exhaustion; both are "caller drops this
// sample" conditions, not errors.
func (t *InternTable) Put(frames []calltrace.CallFrame) uint32 {
	hash := calltrace.HashFrames(frames)
	gen := t.current.Load()

	slot, result := gen.CASProbe(hash)
	switch result {
	case gentable.Overflow:
		return 0
	case gentable.Hit:
		return identifierFor(gen, slot)
	}

	// Claimed: this goroutine owns publication for (gen, slot).
	newSize := gen.IncSize()
	if isGrowthThreshold(gen.Capacity(), newSize) {
		t.growFrom(gen)
	}

	trace := t.resolvePayload(gen, hash, frames)
	gen.PublishValue(slot, trace)
	if trace == nil {
		return 0
	}
	return identifierFor(gen, slot)
}

// resolvePayload reuses the immediate predecessor's trace pointer when the
// hash is already interned there (migrate by reference, never by copy),
// and otherwise stores a fresh copy in the linear allocator.
func (t *InternTable) resolvePayload(gen *gentable.Generation, hash uint64, frames []calltrace.CallFrame) *calltrace.CallTrace {
	if gen.Prev != nil {
		if existing := gen.Prev.Find(hash); existing != nil {
			return existing
		}
	}
	return t.storeCallTrace(frames)
}

// storeCallTrace copies frames into a fresh allocation from the linear
// allocator. Returns nil if the allocator is exhausted (oversized request
// or an mmap failure reaching a new chunk); the caller treats that as
// "store skipped".
func (t *InternTable) storeCallTrace(frames []calltrace.CallFrame) *calltrace.CallTrace {
	size := calltrace.TraceSize(len(frames))
	ptr := t.alloc.Alloc(int(size))
	if ptr == nil {
		return nil
	}
	trace := (*calltrace.CallTrace)(ptr)
	trace.Write(frames)
	return trace
}

// growFrom allocates a doubled-capacity generation and CAS-publishes it as
// current. A lost race (another goroutine already published growth)
// destroys this goroutine's generation instead of leaking it. A failed
// allocation leaves gen in place — growth is best-effort, never required
// for the correctness of inserts already in flight.
func (t *InternTable) growFrom(gen *gentable.Generation) {
	next, err := gentable.Allocate(t.pager, gen, gen.Capacity()*2)
	if err != nil {
		return
	}
	if !t.current.CompareAndSwap(gen, next) {
		next.Destroy()
	}
}

func isGrowthThreshold(capacity, size uint32) bool {
	return uint64(size)*growthDenominator == uint64(capacity)*growthNumerator
}

// identifierFor maps a slot to its stable identifier: disjoint,
// monotonically increasing ranges per generation because each generation
// doubles capacity.
func identifierFor(gen *gentable.Generation, slot uint32) uint32 {
	return gen.Capacity() - (InitialCapacity - 1) + slot
}

// Collect enumerates every published entry across all generations into
// out, keyed by identifier. Identifier ranges are disjoint across
// generations (see identifierFor), so no generation's entries can
// overwrite another's regardless of walk order. Call only when no
// concurrent Put may be in flight, or accept a fuzzy snapshot.
func (t *InternTable) Collect(out map[uint32]*calltrace.CallTrace) {
	for gen := t.current.Load(); gen != nil; gen = gen.Prev {
		capacity := gen.Capacity()
		for slot := uint32(0); slot < capacity; slot++ {
			key := gen.KeyAt(slot)
			if key == 0 {
				continue
			}
			value := gen.ValueAt(slot)
			if value == nil {
				// CLAIMED but not yet PUBLISHED: a concurrent Put is
				// mid-flight for this slot. Skip it rather than hand the
				// caller a torn entry.
				continue
			}
			out[identifierFor(gen, slot)] = value
		}
	}
}

// Clear destroys every generation except the oldest, resets that head in
// place, and releases every linear-allocator chunk. Not concurrent-safe
// with Put; callers with concurrent samplers must quiesce them first (see
// package session).
func (t *InternTable) Clear() {
	cur := t.current.Load()
	oldest := cur
	for oldest.Prev != nil {
		oldest = oldest.Prev
	}
	for g := cur; g != oldest; {
		g = g.Destroy()
	}
	oldest.Clear()
	t.current.Store(oldest)
	t.alloc.Clear()
}

// Close destroys every generation and releases the linear allocator. The
// InternTable must not be used afterward.
func (t *InternTable) Close() {
	g := t.current.Load()
	for g != nil {
		g = g.Destroy()
	}
	t.current.Store(nil)
	t.alloc.Clear()
}
