package tlsf

import "github.com/LiemDQ/tlsf-pmr/lib"

// Segregated index over the free blocks: one first-level bitmap word,
// one second-level word per first-level class, and a matrix of list
// heads. A head equal to &pool.blocknil means the list is empty.

// insertfreeblock splice block at the head of list (fl, sl) and mark
// both bitmap levels non-empty.
func (pool *Pool) insertfreeblock(block *blockHeader, fl, sl int) {
	current := pool.blocks[fl][sl]
	block.nextFree = current
	block.prevFree = &pool.blocknil
	current.prevFree = block
	if debugAsserts && uintptr(block.topayload())&(alignSize-1) != 0 {
		panicerr("insert: block payload %p misaligned", block.topayload())
	}
	pool.blocks[fl][sl] = block
	pool.flBitmap = pool.flBitmap.Setbit(uint(fl))
	pool.slBitmap[fl] = pool.slBitmap[fl].Setbit(uint(sl))
}

// removefreeblock unlink block from list (fl, sl), clearing the
// second-level bit when the list drains and the first-level bit when
// the whole class drains.
func (pool *Pool) removefreeblock(block *blockHeader, fl, sl int) {
	prev, next := block.prevFree, block.nextFree
	next.prevFree = prev
	prev.nextFree = next
	if pool.blocks[fl][sl] == block {
		pool.blocks[fl][sl] = next
		if next == &pool.blocknil {
			pool.slBitmap[fl] = pool.slBitmap[fl].Clearbit(uint(sl))
			if pool.slBitmap[fl] == 0 {
				pool.flBitmap = pool.flBitmap.Clearbit(uint(fl))
			}
		}
	}
}

// blockinsert file block under the class its size maps to.
func (pool *Pool) blockinsert(block *blockHeader) {
	fl, sl := mappinginsert(block.getsize())
	pool.insertfreeblock(block, fl, sl)
}

// blockremove unlink block from the class its size maps to.
func (pool *Pool) blockremove(block *blockHeader) {
	fl, sl := mappinginsert(block.getsize())
	pool.removefreeblock(block, fl, sl)
}

// searchsuitable find the head of the first non-empty list at (fl, sl)
// or any strictly greater class. Each step is a single word scan, which
// keeps the search constant time.
func (pool *Pool) searchsuitable(fl, sl int) (*blockHeader, int, int) {
	slmap := pool.slBitmap[fl] & (^lib.Bit32(0) << uint(sl))
	if slmap == 0 {
		flmap := pool.flBitmap & (^lib.Bit32(0) << uint(fl+1))
		if flmap == 0 {
			// no class at or above the request, pool exhausted
			return nil, fl, sl
		}
		fl = flmap.Findfirstset()
		slmap = pool.slBitmap[fl]
	}
	sl = slmap.Findfirstset()
	return pool.blocks[fl][sl], fl, sl
}
