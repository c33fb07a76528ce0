package tlsf

import "sync"
import "unsafe"

import s "github.com/prataprc/gosettings"

// SyncResource serialize every Resource entry point with a single mutex
// held for the entirety of the call. The pool core stays lock free, so
// single-threaded users keep the undiluted latency envelope by using
// Resource directly.
//
// SyncResource only serializes access through itself: two resources
// sharing one fallback upstream need that upstream to be thread safe on
// its own.
type SyncResource struct {
	mu  sync.Mutex
	res *Resource
}

// NewSyncResource create a Resource per the supplied settings and
// serialize it.
func NewSyncResource(name string, setts s.Settings) (*SyncResource, error) {
	res, err := NewResource(name, setts)
	if err != nil {
		return nil, err
	}
	return &SyncResource{res: res}, nil
}

// Allocate alias for Resource.Allocate, serialized.
func (sres *SyncResource) Allocate(bytes, align int64) unsafe.Pointer {
	sres.mu.Lock()
	defer sres.mu.Unlock()
	return sres.res.Allocate(bytes, align)
}

// Deallocate alias for Resource.Deallocate, serialized.
func (sres *SyncResource) Deallocate(ptr unsafe.Pointer, bytes, align int64) {
	sres.mu.Lock()
	defer sres.mu.Unlock()
	sres.res.Deallocate(ptr, bytes, align)
}

// Equals report whether other drains into the same pool instance.
func (sres *SyncResource) Equals(other *SyncResource) bool {
	return other != nil && sres.res.Equals(other.res)
}

// Resource expose the wrapped resource. Callers bypassing the mutex are
// on their own.
func (sres *SyncResource) Resource() *Resource {
	return sres.res
}

// Release tear down the underlying resource.
func (sres *SyncResource) Release() {
	sres.mu.Lock()
	defer sres.mu.Unlock()
	sres.res.Release()
}
