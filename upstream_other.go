//go:build !unix

package tlsf

import "github.com/LiemDQ/tlsf-pmr/api"

// NewMmapUpstream falls back to the heap provider on targets without
// anonymous memory maps.
func NewMmapUpstream() api.Upstream {
	return NewHeapUpstream()
}
