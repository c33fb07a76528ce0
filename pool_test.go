package tlsf

import "testing"
import "unsafe"

func validate(t *testing.T, pool *Pool) {
	t.Helper()
	if err := pool.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

// chainshape return the raw size words, flags included, of the physical
// chain in address order.
func chainshape(pool *Pool) []uintptr {
	shape := make([]uintptr, 0, 8)
	for block := pool.first; !block.islast(); block = block.nextphysical() {
		shape = append(shape, block.size)
	}
	return shape
}

func countfree(pool *Pool) int {
	n := 0
	for block := pool.first; !block.islast(); block = block.nextphysical() {
		if block.isfree() {
			n++
		}
	}
	return n
}

func TestNewPool(t *testing.T) {
	pool, err := NewPool("create", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	validate(t, pool)
	capacity, heap, alloc, overhead := pool.Info()
	if heap != 1024*1024 {
		t.Errorf("expected %v, got %v", 1024*1024, heap)
	} else if capacity != int64(pool.usable) {
		t.Errorf("expected %v, got %v", pool.usable, capacity)
	} else if alloc != 0 {
		t.Errorf("expected %v, got %v", 0, alloc)
	} else if overhead <= 0 {
		t.Errorf("unexpected overhead %v", overhead)
	}
	if n := countfree(pool); n != 1 {
		t.Errorf("expected a single free block, got %v", n)
	}
}

func TestNewPoolSizes(t *testing.T) {
	if _, err := NewPool("tiny", 8, nil); err != ErrorPoolSize {
		t.Errorf("expected %v, got %v", ErrorPoolSize, err)
	}
	if _, err := NewPool("toosmall", int64(poolOverhead), nil); err != ErrorPoolSize {
		t.Errorf("expected %v, got %v", ErrorPoolSize, err)
	}
	pool, err := NewPool("snug", int64(poolOverhead+blockSizeMin), nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()
	if pool.usable != blockSizeMin {
		t.Errorf("expected %v, got %v", blockSizeMin, pool.usable)
	}
	validate(t, pool)
}

func TestNewPoolUpstreamFail(t *testing.T) {
	if _, err := NewPool("broke", 4096, &failUpstream{}); err == nil {
		t.Errorf("expected construction failure")
	}
}

func TestPoolMalloc(t *testing.T) {
	pool, err := NewPool("malloc", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	ptr := pool.Malloc(1024)
	if ptr == nil {
		t.Fatalf("unexpected allocation failure")
	} else if pool.Chunklen(ptr) != 1024 {
		t.Errorf("expected %v, got %v", 1024, pool.Chunklen(ptr))
	} else if uintptr(ptr)&(alignSize-1) != 0 {
		t.Errorf("pointer %p misaligned", ptr)
	}
	validate(t, pool)
	if ok := pool.Free(ptr); !ok {
		t.Errorf("expected pool to own %p", ptr)
	}
	validate(t, pool)

	if ptr = pool.Malloc(1024); ptr == nil {
		t.Fatalf("unexpected allocation failure")
	} else if !pool.Free(ptr) {
		t.Errorf("expected pool to own %p", ptr)
	}

	half := int64(1024 * 1024 / 2)
	if ptr = pool.Malloc(half); ptr == nil {
		t.Fatalf("unexpected allocation failure")
	} else if pool.Chunklen(ptr) != half {
		t.Errorf("expected %v, got %v", half, pool.Chunklen(ptr))
	}
	validate(t, pool)
	pool.Free(ptr)

	if ptr = pool.Malloc(1024*1024 + 1); ptr != nil {
		t.Errorf("expected exhaustion, got %p", ptr)
	}
	validate(t, pool)
}

func TestPoolMallocZero(t *testing.T) {
	pool, err := NewPool("zero", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	before := chainshape(pool)
	if ptr := pool.Malloc(0); ptr != nil {
		t.Errorf("expected nil, got %p", ptr)
	}
	after := chainshape(pool)
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("zero-size malloc mutated the pool")
	}
	validate(t, pool)
}

func TestPoolMallocOversize(t *testing.T) {
	pool, err := NewPool("oversize", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	before := chainshape(pool)
	if ptr := pool.Malloc(int64(blockSizeMax)); ptr != nil {
		t.Errorf("expected nil, got %p", ptr)
	}
	if after := chainshape(pool); len(before) != len(after) || before[0] != after[0] {
		t.Errorf("oversized malloc mutated the pool")
	}
	validate(t, pool)
}

func TestPoolFreeBoundary(t *testing.T) {
	pool, err := NewPool("boundary", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	if pool.Free(nil) {
		t.Errorf("nil pointer reported as owned")
	}
	var local [64]byte
	if pool.Free(unsafe.Pointer(&local[32])) {
		t.Errorf("foreign pointer reported as owned")
	}

	// freeing the very first allocation, whose header starts one
	// word before the region, must still report ownership.
	ptr := pool.Malloc(64)
	if ptr == nil {
		t.Fatalf("unexpected allocation failure")
	} else if !pool.Free(ptr) {
		t.Errorf("first allocation reported as foreign")
	}
	validate(t, pool)
}

func TestPoolDoubleFree(t *testing.T) {
	pool, err := NewPool("doublefree", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	ptr := pool.Malloc(128)
	// keep a used neighbour so the freed block is not coalesced away
	next := pool.Malloc(128)
	pool.Free(ptr)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		pool.Free(ptr)
	}()
	pool.Free(next)
}

func TestPoolFillAndDrain(t *testing.T) {
	pool, err := NewPool("filldrain", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	ptrs := make([]unsafe.Pointer, 0, 2500)
	for i := 0; i < 2500; i++ {
		ptr := pool.Malloc(4)
		if ptr == nil {
			t.Fatalf("allocation %v failed", i)
		}
		*(*uint32)(ptr) = uint32(i)
		ptrs = append(ptrs, ptr)
	}
	validate(t, pool)
	for i := len(ptrs) - 1; i >= 0; i-- {
		if *(*uint32)(ptrs[i]) != uint32(i) {
			t.Fatalf("payload %v clobbered", i)
		}
		if !pool.Free(ptrs[i]) {
			t.Fatalf("free %v reported foreign", i)
		}
	}
	validate(t, pool)

	if shape := chainshape(pool); len(shape) != 1 {
		t.Errorf("expected a single free block, got %v", len(shape))
	} else if pool.first.getsize() != pool.usable {
		t.Errorf("expected %v, got %v", pool.usable, pool.first.getsize())
	}
	if n := pool.flBitmap.Ones(); n != 1 {
		t.Errorf("expected one first-level bit, got %v", n)
	}
	slones := 0
	for fl := 0; fl < flIndexCount; fl++ {
		slones += int(pool.slBitmap[fl].Ones())
	}
	if slones != 1 {
		t.Errorf("expected one second-level bit, got %v", slones)
	}
	if _, _, alloc, _ := pool.Info(); alloc != 0 {
		t.Errorf("expected %v, got %v", 0, alloc)
	}
}

func TestPoolExhaustion(t *testing.T) {
	pool, err := NewPool("exhaust", 5000*4, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	before := chainshape(pool)
	if ptr := pool.Malloc(6000 * 4); ptr != nil {
		t.Errorf("expected exhaustion, got %p", ptr)
	}
	if after := chainshape(pool); len(before) != len(after) || before[0] != after[0] {
		t.Errorf("failed malloc mutated the pool")
	}
	validate(t, pool)
}

func TestPoolCoalesceMiddle(t *testing.T) {
	pool, err := NewPool("coalesce", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	a, b, c := pool.Malloc(1024), pool.Malloc(1024), pool.Malloc(1024)
	if a == nil || b == nil || c == nil {
		t.Fatalf("unexpected allocation failure")
	}
	validate(t, pool)

	pool.Free(a)
	validate(t, pool)
	pool.Free(c) // coalesces with the trailing remainder
	validate(t, pool)
	if n := countfree(pool); n != 2 {
		t.Errorf("expected two free blocks, got %v", n)
	}
	pool.Free(b)
	validate(t, pool)
	if n := countfree(pool); n != 1 {
		t.Errorf("expected one free block, got %v", n)
	} else if pool.first.getsize() != pool.usable {
		t.Errorf("expected %v, got %v", pool.usable, pool.first.getsize())
	}
}

func TestPoolReallocInPlace(t *testing.T) {
	pool, err := NewPool("reallocip", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	p := pool.Malloc(1024)
	q := pool.Malloc(1024)
	r := pool.Malloc(1024)
	if p == nil || q == nil || r == nil {
		t.Fatalf("unexpected allocation failure")
	}
	payload := unsafe.Slice((*byte)(p), 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	pool.Free(q) // the block right after p is now free

	if np := pool.Realloc(p, 2000); np != p {
		t.Errorf("expected in-place growth, got %p", np)
	} else if pool.Chunklen(p) != 2000 {
		t.Errorf("expected %v, got %v", 2000, pool.Chunklen(p))
	}
	for i := range payload {
		if payload[i] != byte(i) {
			t.Fatalf("offset %v clobbered", i)
		}
	}
	validate(t, pool)

	// resizing to the current chunk size is the identity
	if np := pool.Realloc(p, pool.Chunklen(p)); np != p {
		t.Errorf("expected %p, got %p", p, np)
	}
	validate(t, pool)

	pool.Free(p)
	pool.Free(r)
	validate(t, pool)
	if n := countfree(pool); n != 1 {
		t.Errorf("expected one free block, got %v", n)
	}
}

func TestPoolReallocCopy(t *testing.T) {
	pool, err := NewPool("realloccp", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	p := pool.Malloc(512)
	barrier := pool.Malloc(512) // keeps p from growing in place
	payload := unsafe.Slice((*byte)(p), 512)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	np := pool.Realloc(p, 4096)
	if np == nil || np == p {
		t.Errorf("expected relocation, got %p", np)
	}
	moved := unsafe.Slice((*byte)(np), 512)
	for i := range moved {
		if moved[i] != byte(i*7) {
			t.Fatalf("offset %v lost in copy", i)
		}
	}
	validate(t, pool)

	pool.Free(np)
	pool.Free(barrier)
	validate(t, pool)
}

func TestPoolReallocEdges(t *testing.T) {
	pool, err := NewPool("reallocedge", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	// nil pointer behaves as malloc
	p := pool.Realloc(nil, 256)
	if p == nil {
		t.Fatalf("unexpected allocation failure")
	}
	validate(t, pool)

	// zero size behaves as free
	if np := pool.Realloc(p, 0); np != nil {
		t.Errorf("expected nil, got %p", np)
	}
	validate(t, pool)
	if n := countfree(pool); n != 1 {
		t.Errorf("expected one free block, got %v", n)
	}

	// shrinking splits the tail back into the pool
	p = pool.Malloc(4096)
	q := pool.Malloc(64)
	if np := pool.Realloc(p, 100); np != p {
		t.Errorf("expected in-place shrink, got %p", np)
	} else if pool.Chunklen(p) != 104 {
		t.Errorf("expected %v, got %v", 104, pool.Chunklen(p))
	}
	validate(t, pool)
	pool.Free(p)
	pool.Free(q)

	// foreign pointers are refused
	var local [64]byte
	if np := pool.Realloc(unsafe.Pointer(&local[32]), 128); np != nil {
		t.Errorf("expected nil for foreign pointer, got %p", np)
	}
}

func TestPoolMemalign(t *testing.T) {
	pool, err := NewPool("memalign", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	p := pool.Memalign(32, 2048)
	if p == nil {
		t.Fatalf("unexpected allocation failure")
	} else if uintptr(p)&31 != 0 {
		t.Errorf("pointer %p not 32 byte aligned", p)
	}
	validate(t, pool)
	if !pool.Free(p) {
		t.Errorf("expected pool to own %p", p)
	}
	validate(t, pool)
	if n := countfree(pool); n != 1 {
		t.Errorf("expected one free block, got %v", n)
	} else if pool.first.getsize() != pool.usable {
		t.Errorf("expected %v, got %v", pool.usable, pool.first.getsize())
	}

	for _, align := range []int64{16, 64, 256, 4096} {
		ptr := pool.Memalign(align, 100)
		if ptr == nil {
			t.Fatalf("align %v: unexpected failure", align)
		} else if uintptr(ptr)&uintptr(align-1) != 0 {
			t.Errorf("align %v: pointer %p misaligned", align, ptr)
		}
		validate(t, pool)
		pool.Free(ptr)
		validate(t, pool)
	}
	if n := countfree(pool); n != 1 {
		t.Errorf("expected one free block, got %v", n)
	}
}

func TestPoolMemalignSmall(t *testing.T) {
	pool, err := NewPool("memalignsmall", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	// alignments at or below the base alignment behave as malloc
	p := pool.Memalign(int64(alignSize), 100)
	if p == nil {
		t.Fatalf("unexpected allocation failure")
	} else if pool.Chunklen(p) != 104 {
		t.Errorf("expected %v, got %v", 104, pool.Chunklen(p))
	} else if uintptr(p)&(alignSize-1) != 0 {
		t.Errorf("pointer %p misaligned", p)
	}
	validate(t, pool)
	pool.Free(p)

	if p = pool.Memalign(32, 0); p != nil {
		t.Errorf("expected nil for zero size, got %p", p)
	}
}

func TestPoolRoundtrip(t *testing.T) {
	pool, err := NewPool("roundtrip", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	before := chainshape(pool)
	flmap, slmaps := pool.flBitmap, pool.slBitmap

	ptr := pool.Malloc(100)
	pool.Free(ptr)

	after := chainshape(pool)
	if len(before) != len(after) {
		t.Fatalf("expected %v blocks, got %v", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("block %v: expected %x, got %x", i, before[i], after[i])
		}
	}
	if flmap != pool.flBitmap || slmaps != pool.slBitmap {
		t.Errorf("bitmaps not restored")
	}
	validate(t, pool)
}

func TestPoolUtilization(t *testing.T) {
	pool, err := NewPool("utilization", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	sizes, percents := pool.Utilization()
	if len(sizes) != 1 || len(percents) != 1 {
		t.Fatalf("expected one class, got %v", len(sizes))
	} else if percents[0] != 100.0 {
		t.Errorf("expected %v, got %v", 100.0, percents[0])
	}
	ptr := pool.Malloc(1024)
	sizes, _ = pool.Utilization()
	if len(sizes) != 1 {
		t.Errorf("expected one class, got %v", len(sizes))
	}
	pool.Free(ptr)
}

func TestPoolRelease(t *testing.T) {
	pool, err := NewPool("release", 1024*1024, nil)
	if err != nil {
		t.Fatalf("unexpected %v", err)
	}
	pool.Release()
	pool.Release() // second release is a no-op
	if pool.Free(nil) {
		t.Errorf("released pool reported ownership")
	}
}

func BenchmarkPoolMalloc(b *testing.B) {
	pool, err := NewPool("benchmalloc", 64*1024*1024, nil)
	if err != nil {
		b.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr := pool.Malloc(96)
		pool.Free(ptr)
	}
}

func BenchmarkPoolRealloc(b *testing.B) {
	pool, err := NewPool("benchrealloc", 64*1024*1024, nil)
	if err != nil {
		b.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	ptr := pool.Malloc(96)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr = pool.Realloc(ptr, 96)
	}
	pool.Free(ptr)
}

func BenchmarkPoolMemalign(b *testing.B) {
	pool, err := NewPool("benchmemalign", 64*1024*1024, nil)
	if err != nil {
		b.Fatalf("unexpected %v", err)
	}
	defer pool.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr := pool.Memalign(64, 96)
		pool.Free(ptr)
	}
}
