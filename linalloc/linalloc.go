// Package linalloc is a chunked bump allocator: it hands out variably-sized,
// word-aligned regions from large pre-reserved chunks and frees only
// wholesale. Chunk memory comes from the Pager, never from the Go heap; the
// small per-chunk bookkeeping record, however, is a Go heap object,
// allocated each time a new chunk is reserved. The only system call on its
// hot path is the Pager's mapping call, and only when the current chunk is
// exhausted.
package linalloc

import (
	"sync/atomic"
	"unsafe"

	"traceintern/pagemap"
)

// DefaultChunkSize is the per-chunk reservation: 8 MiB.
const DefaultChunkSize = 8 << 20

// chunk is one pre-reserved region carved by bumping off.
type chunk struct {
	base unsafe.Pointer
	size int
	off  atomic.Uint64 // bytes claimed so far, bumped via CAS
	prev *chunk
}

// Allocator is a chunked bump allocator. Safe for concurrent Alloc calls,
// including from signal-handler context, as long as the backing Pager is
// itself signal-safe (an anonymous mmap is).
type Allocator struct {
	pager     pagemap.Pager
	chunkSize int

	current atomic.Pointer[chunk]
}

// New configures a bump allocator with the given per-chunk reservation. A
// chunkSize of 0 selects DefaultChunkSize.
func New(pager pagemap.Pager, chunkSize int) *Allocator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Allocator{pager: pager, chunkSize: chunkSize}
}

func wordAlign(n int) int {
	const wordSize = unsafe.Sizeof(uintptr(0))
	return (n + int(wordSize) - 1) &^ (int(wordSize) - 1)
}

// Alloc returns n bytes of uninitialized, word-aligned memory carved from
// the current chunk, allocating a fresh chunk on exhaustion. Allocations
// larger than a chunk fail and return nil; the caller must treat nil as
// "store skipped", never as an error to retry with the same size.
func (a *Allocator) Alloc(n int) unsafe.Pointer {
	if n <= 0 {
		return nil
	}
	n = wordAlign(n)
	if n > a.chunkSize {
		return nil
	}

	for {
		c := a.current.Load()
		if c != nil {
			if ptr := tryBump(c, n); ptr != nil {
				return ptr
			}
		}
		// Current chunk missing or exhausted: reserve a new one and try to
		// publish it. A lost race just discards the loser's chunk and
		// retries against whichever chunk won.
		nc, err := a.newChunk(c)
		if err != nil {
			return nil
		}
		if a.current.CompareAndSwap(c, nc) {
			if ptr := tryBump(nc, n); ptr != nil {
				return ptr
			}
			// n larger than a single fresh chunk's remaining space never
			// happens here since n <= a.chunkSize was checked above, but
			// guard against it anyway instead of looping forever.
			return nil
		}
		if a.pager != nil {
			a.pager.Free(nc.base, nc.size)
		}
	}
}

func tryBump(c *chunk, n int) unsafe.Pointer {
	for {
		off := c.off.Load()
		newOff := off + uint64(n)
		if int(newOff) > c.size {
			return nil
		}
		if c.off.CompareAndSwap(off, newOff) {
			return unsafe.Add(c.base, uintptr(off))
		}
	}
}

func (a *Allocator) newChunk(prev *chunk) (*chunk, error) {
	base, err := a.pager.Alloc(a.chunkSize)
	if err != nil {
		return nil, err
	}
	return &chunk{base: base, size: a.chunkSize, prev: prev}, nil
}

// Clear releases every chunk back to the Pager. Invalidates every pointer
// this Allocator previously returned. Not concurrent-safe with Alloc.
func (a *Allocator) Clear() {
	c := a.current.Load()
	a.current.Store(nil)
	for c != nil {
		prev := c.prev
		if a.pager != nil {
			a.pager.Free(c.base, c.size)
		}
		c = prev
	}
}

// ChunkCount reports how many chunks are currently reserved. Test/diagnostic
// only; not part of the hot path.
func (a *Allocator) ChunkCount() int {
	n := 0
	for c := a.current.Load(); c != nil; c = c.prev {
		n++
	}
	return n
}
