package tlsf

import "unsafe"

import "github.com/LiemDQ/tlsf-pmr/lib"

// blockHeader is the in-pool view of a block.
//
//   - prevPhys is only valid when the previous physical block is free,
//     the word itself lives inside the previous block as its last
//     payload word.
//   - nextFree and prevFree are only valid when the block is free, a
//     used block hands that space to the application.
type blockHeader struct {
	prevPhys *blockHeader
	size     uintptr
	nextFree *blockHeader
	prevFree *blockHeader
}

func (block *blockHeader) getsize() uintptr {
	return block.size &^ (blockHeaderFreeBit | blockHeaderPrevFreeBit)
}

// setsize retains the two flag bits regardless of the new size.
func (block *blockHeader) setsize(size uintptr) {
	block.size = size | (block.size & (blockHeaderFreeBit | blockHeaderPrevFreeBit))
}

func (block *blockHeader) islast() bool {
	return block.getsize() == 0
}

func (block *blockHeader) isfree() bool {
	return block.size&blockHeaderFreeBit != 0
}

func (block *blockHeader) isprevfree() bool {
	return block.size&blockHeaderPrevFreeBit != 0
}

func (block *blockHeader) setfree()     { block.size |= blockHeaderFreeBit }
func (block *blockHeader) setused()     { block.size &^= blockHeaderFreeBit }
func (block *blockHeader) setprevfree() { block.size |= blockHeaderPrevFreeBit }
func (block *blockHeader) setprevused() { block.size &^= blockHeaderPrevFreeBit }

// topayload return the pointer handed to the application, past the
// prevPhys and size words.
func (block *blockHeader) topayload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(block), blockStartOffset)
}

// frompayload recover the block header from an application pointer.
func frompayload(ptr unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Add(ptr, -int(blockStartOffset)))
}

// offsettoblock treat ptr+offset as a block header.
func offsettoblock(ptr unsafe.Pointer, offset uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Add(ptr, offset))
}

// nextphysical locate the next block in address order. The size of a
// block counts its payload plus the next header's prevPhys word, so the
// next header starts one word short of payload+size.
func (block *blockHeader) nextphysical() *blockHeader {
	if debugAsserts && block.islast() {
		panicerr("nextphysical: walked past the terminal sentinel")
	}
	return offsettoblock(block.topayload(), block.getsize()-blockHeaderOverhead)
}

// linknext stamp this block's address into the next header's prevPhys
// word.
func (block *blockHeader) linknext() *blockHeader {
	next := block.nextphysical()
	next.prevPhys = block
	return next
}

func (block *blockHeader) markfree() {
	next := block.linknext()
	next.setprevfree()
	block.setfree()
}

func (block *blockHeader) markused() {
	next := block.nextphysical()
	next.setprevused()
	block.setused()
}

// cansplit whether a remainder carved off past `size` bytes can still
// hold a full header, and so rejoin a free list.
func (block *blockHeader) cansplit(size uintptr) bool {
	return block.getsize() >= blockHeaderSize+size
}

// split carve the tail of the block into a new free block, shrinking
// this block to `size` bytes.
func (block *blockHeader) split(size uintptr) *blockHeader {
	remaining := offsettoblock(block.topayload(), size-blockHeaderOverhead)
	remainsize := block.getsize() - (size + blockHeaderOverhead)
	if debugAsserts {
		if uintptr(remaining.topayload())&(alignSize-1) != 0 {
			panicerr("split: remaining payload %p misaligned", remaining.topayload())
		} else if remainsize < blockSizeMin {
			panicerr("split: remainder %v below minimum %v", remainsize, blockSizeMin)
		}
	}
	remaining.setsize(remainsize)
	block.setsize(size)
	remaining.markfree()
	return remaining
}

// coalesce fold block into prev, its immediate physical predecessor.
// Flag bits of prev are left untouched, the added quantity is a
// multiple of the alignment.
func coalesce(prev, block *blockHeader) *blockHeader {
	if debugAsserts && prev.islast() {
		panicerr("coalesce: cannot extend the terminal sentinel")
	}
	prev.size += block.getsize() + blockHeaderOverhead
	prev.linknext()
	return prev
}

// adjustrequestsize round a request up to the base alignment and clamp
// it into the representable block sizes, 0 means unservable.
func adjustrequestsize(size int64, align uintptr) uintptr {
	if size <= 0 || uint64(size) >= uint64(blockSizeMax) {
		return 0
	}
	aligned := lib.Alignup(uintptr(size), align)
	if aligned >= blockSizeMax {
		return 0
	}
	if aligned < blockSizeMin {
		aligned = blockSizeMin
	}
	return aligned
}

// alignptr round ptr up to the next multiple of align.
func alignptr(ptr unsafe.Pointer, align uintptr) unsafe.Pointer {
	aligned := lib.Alignup(uintptr(ptr), align)
	return unsafe.Add(ptr, aligned-uintptr(ptr))
}
