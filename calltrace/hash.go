package calltrace

// MurmurHash64A (Austin Appleby) over a frame sequence, viewed as bytes.
// This is the exact historical variant the interner keys on: M and R fixed,
// one 8-byte word at a time, a single 4-byte tail branch (CallFrame's size
// is asserted to be a multiple of 4 in frame.go's init, so 1/2/3-byte tails
// never occur).
//
// Collision note: the intern table keys on this 64-bit hash alone. Two
// distinct frame sequences that hash equal are merged into one identifier —
// a deliberate trade so the hot-path CAS never has to read the variable-
// length payload under the lock-free claim. Do not "fix" this by adding a
// byte-wise compare on the hot path.
const (
	murmurM = 0xc6a4a7935bd1e995
	murmurR = 47
)

// zeroHashReplacement is substituted whenever the raw Murmur output is
// exactly zero, since a key of 0 is reserved as the empty-slot sentinel.
const zeroHashReplacement = murmurM

// HashFrames computes MurmurHash64A over frames and remaps a zero result to
// zeroHashReplacement so the hash can never collide with the empty sentinel.
//
//go:nosplit
func HashFrames(frames []CallFrame) uint64 {
	h := hashBytes(FramesBytes(frames))
	if h == 0 {
		return zeroHashReplacement
	}
	return h
}

//go:nosplit
func hashBytes(data []byte) uint64 {
	length := len(data)
	h := uint64(length) * murmurM

	n := length &^ 7 // largest multiple of 8 at or below length
	for i := 0; i < n; i += 8 {
		k := loadU64(data, i)
		k *= murmurM
		k ^= k >> murmurR
		k *= murmurM
		h ^= k
		h *= murmurM
	}

	if length&4 != 0 {
		h ^= uint64(loadU32(data, n))
		h *= murmurM
	}

	h ^= h >> murmurR
	h *= murmurM
	h ^= h >> murmurR
	return h
}

// loadU64 reads an unaligned little-endian 64-bit word at data[off:off+8].
// Frames are produced 8-byte aligned by construction of the stack walker,
// but a byte-wise load keeps this correct on strict-alignment targets
// without a defensive copy on the hot path.
//
//go:nosplit
func loadU64(data []byte, off int) uint64 {
	b := data[off : off+8]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// loadU32 reads an unaligned little-endian 32-bit word at data[off:off+4].
//
//go:nosplit
func loadU32(data []byte, off int) uint32 {
	b := data[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
