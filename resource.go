package tlsf

import "unsafe"

import "github.com/LiemDQ/tlsf-pmr/api"
import s "github.com/prataprc/gosettings"

// Resource adapt a Pool to an allocate/deallocate surface with optional
// upstream fallback, the shape a polymorphic allocator expects.
// Requests the pool cannot satisfy are forwarded to the fallback
// upstream when one is configured, otherwise Allocate panics with
// ErrorOutofMemory.
//
// Resource is a stateful allocator: it must outlive every chunk it
// hands out.
type Resource struct {
	pool     *Pool
	fallback api.Upstream
}

// NewResource create a pool per the supplied settings, documented with
// Defaultsettings, and wrap it in a Resource.
func NewResource(name string, setts s.Settings) (*Resource, error) {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	upstream := newupstream(setts.String("upstream"))
	pool, err := NewPool(name, setts.Int64("capacity"), upstream)
	if err != nil {
		return nil, err
	}
	res := &Resource{pool: pool}
	if setts.Bool("fallback") {
		res.fallback = upstream
	}
	return res, nil
}

// Allocate bytes with the requested alignment. Alignments at or below
// the base alignment dispatch to Malloc, larger ones to Memalign. Zero
// bytes return nil. Panics with ErrorOutofMemory when neither the pool
// nor the fallback can satisfy the request.
func (res *Resource) Allocate(bytes, align int64) unsafe.Pointer {
	var ptr unsafe.Pointer
	if align <= int64(alignSize) {
		ptr = res.pool.Malloc(bytes)
	} else {
		ptr = res.pool.Memalign(align, bytes)
	}
	if ptr == nil && bytes > 0 {
		if res.fallback == nil {
			panic(ErrorOutofMemory)
		}
		p, err := res.fallback.Allocate(bytes, align)
		if err != nil {
			errorf("%v fallback: %v\n", res.pool.logprefix, err)
			panic(ErrorOutofMemory)
		}
		ptr = p
	}
	return ptr
}

// Deallocate release ptr. The chunk size is already known to the pool,
// bytes and align only matter when the pointer is not pool-owned and is
// forwarded to the fallback upstream, they must match the original
// Allocate.
func (res *Resource) Deallocate(ptr unsafe.Pointer, bytes, align int64) {
	if res.pool.Free(ptr) {
		return
	}
	if ptr != nil && res.fallback != nil {
		res.fallback.Release(ptr, bytes, align)
	}
}

// Equals report whether other is a facade over the same pool instance.
func (res *Resource) Equals(other *Resource) bool {
	return other != nil && res.pool == other.pool && res.pool != nil
}

// Pool expose the underlying pool, for accounting and validation.
func (res *Resource) Pool() *Pool {
	return res.pool
}

// Release tear down the pool and return its region upstream.
func (res *Resource) Release() {
	res.pool.Release()
}
