package api

import "unsafe"

// Mallocer interface for custom memory management.
type Mallocer interface {
	// Malloc allocate a chunk of `n` bytes. Allocated memory is
	// always word aligned. Returns nil when the request cannot be
	// satisfied.
	Malloc(n int64) unsafe.Pointer

	// Memalign allocate a chunk of `n` bytes whose address is a
	// multiple of `align`, a power of two.
	Memalign(align, n int64) unsafe.Pointer

	// Realloc resize the chunk at ptr to `n` bytes, in place when the
	// physical neighbourhood allows it. A nil ptr behaves as Malloc,
	// a zero `n` as Free.
	Realloc(ptr unsafe.Pointer, n int64) unsafe.Pointer

	// Free chunk back to the allocator. Returns false when ptr is not
	// owned by this allocator.
	Free(ptr unsafe.Pointer) bool

	// Chunklen return the usable length of an allocated chunk.
	Chunklen(ptr unsafe.Pointer) int64

	// Info of memory accounting for this allocator.
	Info() (capacity, heap, alloc, overhead int64)

	// Utilization of free memory per size-class.
	Utilization() ([]int, []float64)

	// Release the allocator and all its resources.
	Release()
}

// Upstream supplies the raw backing region for an allocator, and can
// double as an overflow sink for requests the allocator cannot satisfy.
type Upstream interface {
	// Allocate a region of n bytes aligned to align.
	Allocate(n, align int64) (unsafe.Pointer, error)

	// Release a region obtained from Allocate, with the same n and
	// align it was obtained with.
	Release(ptr unsafe.Pointer, n, align int64)
}
