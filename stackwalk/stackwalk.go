// Package stackwalk provides a deterministic synthetic stand-in for a
// real stack walker, which hands the interner a frame slice valid for the
// duration of a Put call. Test/demo-only scaffolding; it never sits on
// the interner's hot path.
package stackwalk

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"traceintern/calltrace"
)

// Synthetic derives depth deterministic CallFrames from seed: frame i's PC
// and Meta come from successive 8-byte windows of
// sha3.Sum256(seed, i). Same (seed, depth) always produces the same
// frames, which is what makes it usable as a repeatable test fixture
// instead of a real stack walker.
func Synthetic(seed uint64, depth int) []calltrace.CallFrame {
	if depth <= 0 {
		return nil
	}
	frames := make([]calltrace.CallFrame, depth)
	var seedBuf [16]byte
	binary.LittleEndian.PutUint64(seedBuf[:8], seed)
	for i := 0; i < depth; i++ {
		binary.LittleEndian.PutUint64(seedBuf[8:], uint64(i))
		digest := sha3.Sum256(seedBuf[:])
		frames[i] = calltrace.CallFrame{
			PC:   binary.LittleEndian.Uint64(digest[0:8]),
			Meta: binary.LittleEndian.Uint64(digest[8:16]),
		}
	}
	return frames
}
