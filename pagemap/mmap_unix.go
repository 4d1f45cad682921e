//go:build linux || darwin

package pagemap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapPager is the production Pager: every allocation is its own anonymous,
// private mapping, rounded up to the OS page size. Anonymous rather than
// file-backed since the intern table never persists anything.
type MmapPager struct {
	pageSize int
}

// NewMmapPager constructs a Pager backed by the kernel's anonymous mapping
// facility.
func NewMmapPager() *MmapPager {
	return &MmapPager{pageSize: unix.Getpagesize()}
}

func (p *MmapPager) roundUp(bytes int) int {
	sz := p.pageSize
	return ((bytes + sz - 1) / sz) * sz
}

// Alloc returns zeroed, page-aligned memory from a fresh anonymous mapping.
// The kernel guarantees anonymous pages start zero-filled, which is the
// property the generation table's empty-sentinel design depends on.
func (p *MmapPager) Alloc(bytes int) (unsafe.Pointer, error) {
	if bytes <= 0 {
		return nil, fmt.Errorf("pagemap: alloc size must be positive, got %d", bytes)
	}
	size := p.roundUp(bytes)
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pagemap: mmap %d bytes: %w", size, err)
	}
	return unsafe.Pointer(&data[0]), nil
}

// Free unmaps memory previously returned by Alloc. bytes must match the
// value originally passed to Alloc (Free rounds it up the same way Alloc
// did).
func (p *MmapPager) Free(ptr unsafe.Pointer, bytes int) {
	if ptr == nil {
		return
	}
	size := p.roundUp(bytes)
	data := unsafe.Slice((*byte)(ptr), size)
	_ = unix.Munmap(data)
}
