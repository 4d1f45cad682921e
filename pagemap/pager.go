// Package pagemap implements the "OS page allocator" collaborator the
// intern table relies on: zeroed, page-aligned memory via an anonymous
// mapping, so the empty sentinel (key == 0) is guaranteed without an
// explicit zeroing pass.
package pagemap

import "unsafe"

// Pager hands out and releases page-aligned, zero-filled memory backed by
// an anonymous OS mapping. Any non-nil result from Alloc is usable without
// further initialization — that guarantee is what lets a Generation treat
// key == 0 as "empty" with no setup pass.
type Pager interface {
	// Alloc reserves at least bytes of zeroed, page-aligned memory, or
	// returns an error if the mapping request failed.
	Alloc(bytes int) (unsafe.Pointer, error)

	// Free releases memory previously returned by Alloc for the same
	// byte count. Invalidates every pointer derived from it.
	Free(ptr unsafe.Pointer, bytes int)
}
