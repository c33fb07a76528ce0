package tlsf

import "github.com/cloudfoundry/gosigar"
import s "github.com/prataprc/gosettings"

// Mincapacity smallest backing region a pool will be configured with by
// default.
const Mincapacity = int64(1024 * 1024)

// Maxcapacity largest backing region a pool will be configured with by
// default. Can be overridden through the "capacity" setting.
const Maxcapacity = int64(1024 * 1024 * 1024)

// Defaultsettings for tlsf pools and resources.
//
// "capacity" (int64, default: free-RAM/64 clamped to [Mincapacity, Maxcapacity])
//		Size of the backing region acquired from the upstream
//		provider at construction. Pools never grow or shrink
//		afterwards.
//
// "upstream" (string, default: "heap")
//		Region provider, can be "heap" or "mmap". The mmap provider
//		keeps the region outside the go heap.
//
// "fallback" (bool, default: false)
//		When true, requests the pool cannot satisfy are forwarded to
//		the upstream provider instead of raising ErrorOutofMemory,
//		and foreign pointers handed to Deallocate are released there.
//
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	capacity := int64(free / 64)
	if capacity > Maxcapacity {
		capacity = Maxcapacity
	} else if capacity < Mincapacity {
		capacity = Mincapacity
	}
	return s.Settings{
		"capacity": capacity,
		"upstream": "heap",
		"fallback": false,
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
