package tlsf

import "errors"

// ErrorOutofMemory is raised by Resource.Allocate when neither the pool
// nor the fallback upstream can satisfy a request.
var ErrorOutofMemory = errors.New("tlsf.outofmemory")

// ErrorPoolSize is returned when the usable region would fall outside
// the representable block sizes.
var ErrorPoolSize = errors.New("tlsf.poolsize")

// ErrorMisaligned is returned when the upstream hands out a region that
// is not aligned to the base alignment.
var ErrorMisaligned = errors.New("tlsf.misaligned")
