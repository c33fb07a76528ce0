package tlsf

import "fmt"
import "unsafe"

import "github.com/LiemDQ/tlsf-pmr/api"
import "github.com/LiemDQ/tlsf-pmr/lib"
import humanize "github.com/dustin/go-humanize"

// Pool carves a single fixed region, obtained once from the upstream
// provider, into user blocks. Free blocks are indexed by a two-level
// segregated fit so that malloc, free, in-place realloc and memalign
// stay bounded by a handful of word scans regardless of fragmentation.
//
// Pools are not thread safe, wrap a Resource in SyncResource for
// concurrent use.
type Pool struct {
	// 64-bit aligned stats
	mallocated int64

	// self-linked reference block terminating every free list,
	// pointing to it means the slot is unassigned.
	blocknil blockHeader

	flBitmap lib.Bit32
	slBitmap [flIndexCount]lib.Bit32
	blocks   [flIndexCount][slIndexCount]*blockHeader

	base     unsafe.Pointer // region obtained from upstream
	capacity int64          // region length in bytes
	usable   uintptr        // payload size of the primary block
	first    *blockHeader   // primary block, lowest owned address
	hi       uintptr        // one past the region end

	upstream  api.Upstream
	name      string
	logprefix string
}

// NewPool acquire a capacity-byte region from the upstream provider and
// carve it into one huge free block flanked by a zero-size terminal
// sentinel. A nil upstream defaults to the go heap. The usable size,
// capacity less twice the block overhead rounded down to the alignment,
// must fall within the representable block sizes.
func NewPool(name string, capacity int64, upstream api.Upstream) (*Pool, error) {
	if upstream == nil {
		upstream = NewHeapUpstream()
	}
	pool := &Pool{
		name: name, capacity: capacity, upstream: upstream,
		logprefix: fmt.Sprintf("TLSF [%s]", name),
	}
	if capacity <= int64(poolOverhead) {
		return nil, ErrorPoolSize
	}
	base, err := upstream.Allocate(capacity, int64(alignSize))
	if err != nil {
		return nil, fmt.Errorf("%v upstream: %w", pool.logprefix, err)
	}
	if uintptr(base)&(alignSize-1) != 0 {
		upstream.Release(base, capacity, int64(alignSize))
		return nil, ErrorMisaligned
	}
	poolbytes := lib.Aligndown(uintptr(capacity)-poolOverhead, alignSize)
	if poolbytes < blockSizeMin || poolbytes > blockSizeMax {
		upstream.Release(base, capacity, int64(alignSize))
		return nil, ErrorPoolSize
	}

	pool.blocknil.nextFree = &pool.blocknil
	pool.blocknil.prevFree = &pool.blocknil
	for i := 0; i < flIndexCount; i++ {
		for j := 0; j < slIndexCount; j++ {
			pool.blocks[i][j] = &pool.blocknil
		}
	}

	pool.base, pool.usable = base, poolbytes
	pool.hi = uintptr(base) + uintptr(capacity)

	// The primary block is offset backwards so that its payload
	// starts one word into the region: its prevPhys word falls just
	// outside the region and is never referenced.
	block := (*blockHeader)(unsafe.Add(base, int(blockHeaderOverhead)-int(blockStartOffset)))
	block.setsize(poolbytes)
	block.setfree()
	block.setprevused()
	pool.blockinsert(block)
	pool.first = block

	// zero-size terminal sentinel, never allocated, stops physical
	// traversal at the region end.
	next := block.linknext()
	next.setsize(0)
	next.setused()
	next.setprevfree()

	infof("%v created with %v capacity (%v usable)\n",
		pool.logprefix, humanize.Bytes(uint64(capacity)), humanize.Bytes(uint64(poolbytes)))
	return pool, nil
}

// Release implement api.Mallocer{} interface. Returns the region to the
// upstream provider, outstanding pointers into the pool become invalid.
func (pool *Pool) Release() {
	if pool.base == nil {
		return
	}
	infof("%v released\n", pool.logprefix)
	pool.upstream.Release(pool.base, pool.capacity, int64(alignSize))
	pool.base, pool.first = nil, nil
	pool.hi, pool.mallocated = 0, 0
}

//---- operations

// Malloc implement api.Mallocer{} interface. Returns nil when size is
// zero, exceeds the largest class, or the pool is exhausted.
func (pool *Pool) Malloc(size int64) unsafe.Pointer {
	adjust := adjustrequestsize(size, alignSize)
	block := pool.locatefree(adjust)
	return pool.prepareused(block, adjust)
}

// Free implement api.Mallocer{} interface. Coalesces with free physical
// neighbours and reinserts. The boolean reports ownership: pointers
// outside the pool region are left untouched and reported false, so a
// facade can forward them upstream.
func (pool *Pool) Free(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	block := frompayload(ptr)
	if !pool.owns(block) {
		return false
	}
	if block.isfree() {
		panicerr("%v double free of %p", pool.logprefix, ptr)
	}
	pool.mallocated -= int64(block.getsize())
	poisonblock(ptr, block.getsize())
	block.markfree()
	block = pool.mergeprev(block)
	block = pool.mergenext(block)
	pool.blockinsert(block)
	return true
}

// Realloc implement api.Mallocer{} interface. Grows in place when the
// physically next block is free and large enough, otherwise allocates,
// copies and frees. A nil ptr behaves as Malloc, a zero size as Free. A
// request that cannot be satisfied leaves the original chunk untouched.
func (pool *Pool) Realloc(ptr unsafe.Pointer, size int64) unsafe.Pointer {
	if ptr != nil && size == 0 {
		pool.Free(ptr)
		return nil
	} else if ptr == nil {
		return pool.Malloc(size)
	}
	block := frompayload(ptr)
	if !pool.owns(block) {
		return nil
	}
	if block.isfree() {
		panicerr("%v realloc of freed pointer %p", pool.logprefix, ptr)
	}
	adjust := adjustrequestsize(size, alignSize)
	if adjust == 0 {
		return nil
	}
	next := block.nextphysical()
	cursize := block.getsize()
	combined := cursize + next.getsize() + blockHeaderOverhead

	if adjust > cursize && (!next.isfree() || adjust > combined) {
		p := pool.Malloc(size)
		if p != nil {
			minsize := cursize
			if uintptr(size) < minsize {
				minsize = uintptr(size)
			}
			lib.Memcpy(p, ptr, int(minsize))
			pool.Free(ptr)
		}
		return p
	}
	if adjust > cursize {
		pool.mergenext(block)
		block.markused()
	}
	pool.trimused(block, adjust)
	pool.mallocated += int64(block.getsize()) - int64(cursize)
	return ptr
}

// Memalign implement api.Mallocer{} interface. The returned payload is
// a multiple of align, a power of two. Alignments at or below the base
// alignment behave exactly as Malloc.
func (pool *Pool) Memalign(align, size int64) unsafe.Pointer {
	adjust := adjustrequestsize(size, alignSize)
	if adjust == 0 || align <= int64(alignSize) {
		return pool.prepareused(pool.locatefree(adjust), adjust)
	}

	// Oversize the request by align plus a full header: if the free
	// block leaves an alignment gap too small to stand alone, the
	// payload can shift to the next boundary and the gap still be
	// trimmed off as a proper free block. The gap cannot be folded
	// into the previous block, that one is in use and its prevPhys
	// word is not valid.
	withgap := adjustrequestsize(int64(adjust)+align+int64(blockHeaderSize), uintptr(align))
	if withgap == 0 {
		return nil
	}
	block := pool.locatefree(withgap)
	if block == nil {
		return nil
	}
	ptr := block.topayload()
	aligned := alignptr(ptr, uintptr(align))
	gap := uintptr(aligned) - uintptr(ptr)

	// a gap below a full header moves to the next aligned boundary
	if gap != 0 && gap < blockHeaderSize {
		remain := blockHeaderSize - gap
		offset := remain
		if uintptr(align) > offset {
			offset = uintptr(align)
		}
		aligned = alignptr(unsafe.Add(aligned, offset), uintptr(align))
		gap = uintptr(aligned) - uintptr(ptr)
	}
	if gap != 0 {
		if debugAsserts && gap < blockHeaderSize {
			panicerr("memalign: gap %v below minimum %v", gap, blockHeaderSize)
		}
		block = pool.trimfreeleading(block, gap)
	}
	return pool.prepareused(block, adjust)
}

//---- local functions

// owns whether the block address falls within this pool, the primary
// block starts one word before the region proper.
func (pool *Pool) owns(block *blockHeader) bool {
	addr := uintptr(unsafe.Pointer(block))
	return pool.first != nil &&
		addr >= uintptr(unsafe.Pointer(pool.first)) && addr < pool.hi
}

// locatefree map the request, scan the index and unlink a suitable
// block. Returns nil when every class at or above the request is empty.
func (pool *Pool) locatefree(size uintptr) *blockHeader {
	if size == 0 {
		return nil
	}
	fl, sl := mappingsearch(size)
	if fl >= flIndexCount {
		return nil
	}
	block, fl, sl := pool.searchsuitable(fl, sl)
	if block == nil {
		return nil
	}
	if debugAsserts && block.getsize() < size {
		panicerr("locatefree: block of %v below request %v", block.getsize(), size)
	}
	pool.removefreeblock(block, fl, sl)
	return block
}

// prepareused trim the excess off a located block, mark it used and
// hand out its payload.
func (pool *Pool) prepareused(block *blockHeader, size uintptr) unsafe.Pointer {
	if block == nil {
		return nil
	}
	if debugAsserts && size == 0 {
		panicerr("prepareused: zero size")
	}
	pool.trimfree(block, size)
	block.markused()
	pool.mallocated += int64(block.getsize())
	return block.topayload()
}

// trimfree return any trailing space over size back to the index.
func (pool *Pool) trimfree(block *blockHeader, size uintptr) {
	if block.cansplit(size) {
		remaining := block.split(size)
		block.linknext()
		remaining.setprevfree()
		pool.blockinsert(remaining)
	}
}

// trimused carve trailing space off a used block and return it to the
// index, merged with the next block when that one is free.
func (pool *Pool) trimused(block *blockHeader, size uintptr) {
	if block.cansplit(size) {
		remaining := block.split(size)
		remaining.setprevused()
		remaining = pool.mergenext(remaining)
		pool.blockinsert(remaining)
	}
}

// trimfreeleading split off the leading `size` bytes as a standalone
// free block and return the trailing remainder.
func (pool *Pool) trimfreeleading(block *blockHeader, size uintptr) *blockHeader {
	remaining := block
	if block.cansplit(size) {
		remaining = block.split(size - blockHeaderOverhead)
		remaining.setprevfree()
		block.linknext()
		pool.blockinsert(block)
	}
	return remaining
}

// mergeprev coalesce block with its physical predecessor when that one
// is free.
func (pool *Pool) mergeprev(block *blockHeader) *blockHeader {
	if block.isprevfree() {
		prev := block.prevPhys
		if debugAsserts && (prev == nil || !prev.isfree()) {
			panicerr("mergeprev: predecessor not free though flagged so")
		}
		pool.blockremove(prev)
		block = coalesce(prev, block)
	}
	return block
}

// mergenext coalesce block with its physical successor when that one is
// free.
func (pool *Pool) mergenext(block *blockHeader) *blockHeader {
	next := block.nextphysical()
	if next.isfree() {
		pool.blockremove(next)
		block = coalesce(block, next)
	}
	return block
}

//---- statistics and maintenance

// Chunklen implement api.Mallocer{} interface. Returns the usable size
// of an allocated chunk.
func (pool *Pool) Chunklen(ptr unsafe.Pointer) int64 {
	return int64(frompayload(ptr).getsize())
}

// Info implement api.Mallocer{} interface.
func (pool *Pool) Info() (capacity, heap, alloc, overhead int64) {
	self := int64(unsafe.Sizeof(*pool))
	capacity = int64(pool.usable)
	heap = pool.capacity
	alloc = pool.mallocated
	overhead = self + (pool.capacity - int64(pool.usable))
	return
}

// Utilization implement api.Mallocer{} interface. Walks the index and
// reports, per non-empty first-level class, the class ceiling in bytes
// and the percentage of the usable region held free in it. Not part of
// the hot path.
func (pool *Pool) Utilization() ([]int, []float64) {
	sizes, percents := make([]int, 0, flIndexCount), make([]float64, 0, flIndexCount)
	for fl := 0; fl < flIndexCount; fl++ {
		freebytes := uintptr(0)
		for sl := 0; sl < slIndexCount; sl++ {
			for blk := pool.blocks[fl][sl]; blk != &pool.blocknil; blk = blk.nextFree {
				freebytes += blk.getsize()
			}
		}
		if freebytes > 0 {
			sizes = append(sizes, int(smallBlockSize<<uint(fl)))
			percents = append(percents, float64(freebytes)/float64(pool.usable)*100)
		}
	}
	return sizes, percents
}

// Validate walk the physical chain and the segregated index, verifying
// the cross-linked invariants: bitmaps against list heads, list
// membership against the free flag and the size mapping, the chain
// against flags, sizes, alignment and coalescing totality. Meant for
// tests and debugging, not the hot path.
func (pool *Pool) Validate() error {
	for fl := 0; fl < flIndexCount; fl++ {
		if flset := pool.flBitmap&(1<<uint(fl)) != 0; flset != (pool.slBitmap[fl] != 0) {
			return fmt.Errorf("first-level bit %v disagrees with second-level map", fl)
		}
		for sl := 0; sl < slIndexCount; sl++ {
			head := pool.blocks[fl][sl]
			if slset := pool.slBitmap[fl]&(1<<uint(sl)) != 0; slset != (head != &pool.blocknil) {
				return fmt.Errorf("second-level bit (%v,%v) disagrees with list head", fl, sl)
			}
			for blk := head; blk != &pool.blocknil; blk = blk.nextFree {
				if !blk.isfree() {
					return fmt.Errorf("block %p on list (%v,%v) not marked free", blk, fl, sl)
				}
				if bfl, bsl := mappinginsert(blk.getsize()); bfl != fl || bsl != sl {
					return fmt.Errorf(
						"block of %v maps to (%v,%v), found on (%v,%v)",
						blk.getsize(), bfl, bsl, fl, sl)
				}
			}
		}
	}

	prevfree := false
	block := pool.first
	for !block.islast() {
		if block.getsize() < blockSizeMin {
			return fmt.Errorf("block %p of %v below minimum", block, block.getsize())
		}
		if uintptr(block.topayload())&(alignSize-1) != 0 {
			return fmt.Errorf("block payload %p misaligned", block.topayload())
		}
		if block.isprevfree() != prevfree {
			return fmt.Errorf("prev-free flag stale on block %p", block)
		}
		if prevfree && block.isfree() {
			return fmt.Errorf("adjacent free blocks at %p", block)
		}
		if block.isfree() && !pool.onfreelist(block) {
			return fmt.Errorf("free block %p missing from its list", block)
		}
		prevfree = block.isfree()
		block = block.nextphysical()
	}
	if block.isfree() {
		return fmt.Errorf("terminal sentinel marked free")
	}
	if block.isprevfree() != prevfree {
		return fmt.Errorf("prev-free flag stale on terminal sentinel")
	}
	if end := uintptr(unsafe.Pointer(block)); end != uintptr(pool.base)+pool.usable {
		return fmt.Errorf("physical chain ends at %x, want %x", end, uintptr(pool.base)+pool.usable)
	}
	return nil
}

func (pool *Pool) onfreelist(block *blockHeader) bool {
	fl, sl := mappinginsert(block.getsize())
	for blk := pool.blocks[fl][sl]; blk != &pool.blocknil; blk = blk.nextFree {
		if blk == block {
			return true
		}
	}
	return false
}
