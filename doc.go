// Package tlsf implements a two-level segregated fit memory pool with
// bounded, constant-time malloc, free, realloc and memalign, with a
// limited scope:
//
//   - Types and Functions exported by this package, other than
//     SyncResource, are not thread safe. Wrap a Resource in
//     SyncResource for concurrent use.
//   - The backing region is acquired from an upstream provider exactly
//     once, at construction, and handed back only on Release. Pools
//     never grow, shrink, compact or relocate.
//   - Allocation, deallocation and in-place reallocation execute in a
//     bounded number of word scans regardless of fragmentation, which
//     is the point: worst-case latency over raw throughput.
//   - Memory chunks allocated by this package will always be word
//     aligned, Memalign serves stricter alignments.
//
// A pool is a single region carved into blocks threaded on a physical
// chain, each header carrying its size and two status bits. Free blocks
// are additionally indexed by a two-level bitmap over segregated free
// lists, first level by power of two, second level by linear
// subdivision. Both views share the same block storage, splitting and
// coalescing maintain them together.
package tlsf
