// Package calltrace defines the wire-level records the intern table stores:
// the opaque per-frame record the stack walker produces, and the variable-
// length trace that the linear allocator carves out to hold a full stack.
//
// Design Principles:
//   - CallFrame is opaque: the interner never interprets PC/Meta, only hashes
//     and copies the bytes.
//   - CallTrace is laid out once in allocator-owned memory and never mutated
//     again; NumFrames is followed immediately by NumFrames CallFrames.
package calltrace

import "unsafe"

// CallFrame is a single entry of a captured call stack. Two machine
// words: the stack walker fills both, the interner only hashes and
// copies them.
type CallFrame struct {
	PC   uint64 // instruction pointer or virtual-machine equivalent
	Meta uint64 // frame-local metadata (e.g. inline depth, symbol hint)
}

func init() {
	// The hash function's tail handling only covers a 4-byte remainder; it
	// assumes sizeof(CallFrame) is a multiple of 4.
	if unsafe.Sizeof(CallFrame{})%4 != 0 {
		panic("calltrace: CallFrame size must be a multiple of 4 bytes")
	}
}

// CallTrace is the interned payload: a header followed immediately by
// NumFrames CallFrames in the same allocation. Never mutated after
// Frames() is populated; never freed individually — the owning linear
// allocator releases its backing chunks wholesale.
type CallTrace struct {
	NumFrames int32
	_         [4]byte // pad header to 8 bytes so Frames() is word-aligned
}

// TraceSize returns the total byte size of a CallTrace header plus
// numFrames CallFrame records, as the linear allocator must reserve it.
func TraceSize(numFrames int) uintptr {
	return unsafe.Sizeof(CallTrace{}) + uintptr(numFrames)*unsafe.Sizeof(CallFrame{})
}

// Frames returns the frame array embedded immediately after t's header.
// Valid only for a t obtained from a linear allocator that reserved
// TraceSize(t.NumFrames) bytes at t's address.
func (t *CallTrace) Frames() []CallFrame {
	if t == nil || t.NumFrames == 0 {
		return nil
	}
	base := unsafe.Add(unsafe.Pointer(t), unsafe.Sizeof(CallTrace{}))
	return unsafe.Slice((*CallFrame)(base), int(t.NumFrames))
}

// FramesBytes views frames as a raw byte blob, the shape the hash function
// and the frame-by-frame copy both operate on.
func FramesBytes(frames []CallFrame) []byte {
	if len(frames) == 0 {
		return nil
	}
	n := len(frames) * int(unsafe.Sizeof(CallFrame{}))
	return unsafe.Slice((*byte)(unsafe.Pointer(&frames[0])), n)
}

// Write populates t's embedded frame array by copying frames one at a
// time. Deliberately avoids the libc-backed bulk memmove path: a signal
// handler must not call into anything that isn't async-signal-safe, and a
// plain element-wise Go copy lowers to straight-line MOVs for this fixed
// 16-byte element size rather than a runtime memmove call.
func (t *CallTrace) Write(frames []CallFrame) {
	t.NumFrames = int32(len(frames))
	dst := t.Frames()
	for i := range frames {
		dst[i] = frames[i]
	}
}
