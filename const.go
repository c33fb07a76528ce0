package tlsf

// Word width of the host picks the base alignment and the largest
// first-level class: 8-byte alignment with 2^32 byte ceiling on 64-bit
// targets, 4-byte alignment with 2^30 on 32-bit targets.
const (
	wordSize      = 4 << (^uintptr(0) >> 63) // bytes per machine word
	alignSizeLog2 = 2 + (^uintptr(0) >> 63)
	alignSize     = uintptr(1) << alignSizeLog2

	// log2 of the linear subdivisions of every first-level class.
	slIndexCountLog2 = 5
	slIndexCount     = 1 << slIndexCountLog2

	flIndexMax   = 26 + 2*alignSizeLog2
	flIndexShift = slIndexCountLog2 + alignSizeLog2
	flIndexCount = int(flIndexMax - flIndexShift + 1)

	// below this size every block shares first-level class zero,
	// subdividing further would outnumber the available slots.
	smallBlockSize = uintptr(1) << flIndexShift
)

// Block sizes are always a multiple of the base alignment, freeing the
// two low bits of the size word for block status:
//	bit 0: this block is free
//	bit 1: the previous physical block is free
const (
	blockHeaderFreeBit     = uintptr(1) << 0
	blockHeaderPrevFreeBit = uintptr(1) << 1

	// the size word is the only per-block overhead exposed to the
	// application, the prevPhys word overlaps the last payload word
	// of the previous block.
	blockHeaderOverhead = wordSize
	blockStartOffset    = 2 * wordSize

	// a full header, including both free-list links.
	blockHeaderSize = 4 * wordSize

	blockSizeMin = blockHeaderSize - blockHeaderOverhead
	blockSizeMax = uintptr(1) << flIndexMax

	poolOverhead = 2 * blockHeaderOverhead
)
