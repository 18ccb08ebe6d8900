package hugealloc

import (
	"sync"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-fabrpc/go-fabrpc/lib/util"
)

var log = logger.GetGoI2PLogger()

// hugePageSize is the slab granularity, one 2 MiB hugepage.
const hugePageSize = 2 << 20

// ErrOutOfMemory is returned when a reservation would exceed the allocator's
// capacity.
var ErrOutOfMemory = oops.Errorf("allocator capacity exhausted")

// Stats is a snapshot of the allocator's accounting.
type Stats struct {
	// UserAlloc is the byte total currently reserved or carved out.
	UserAlloc uint64
	// MappedBytes is the byte total of backing slabs obtained from the OS or
	// heap.
	MappedBytes uint64
	// HugeFallbacks counts slabs that fell back to the heap because a
	// hugepage mmap failed.
	HugeFallbacks uint64
}

type slab struct {
	buf    []byte
	mapped bool
}

// Allocator is a hugepage-backed arena with a hard capacity. All methods are
// safe for concurrent use.
type Allocator struct {
	mu sync.Mutex

	// capacity caps UserAlloc; zero means unlimited.
	capacity uint64
	numaNode int

	userAlloc     uint64
	mappedBytes   uint64
	hugeFallbacks uint64

	slabs  []slab
	active []byte
	closed bool
}

// New builds an allocator with the given capacity in bytes. numaNode is
// recorded for diagnostics only; slab placement follows the kernel's default
// policy.
func New(capacity uint64, numaNode int) *Allocator {
	log.WithFields(logger.Fields{
		"at":        "hugealloc.New",
		"capacity":  capacity,
		"numa_node": numaNode,
	}).Debug("allocator_created")
	return &Allocator{capacity: capacity, numaNode: numaNode}
}

// Reserve accounts n bytes against the capacity and guarantees backing slabs
// exist for them. Fails atomically: on ErrOutOfMemory no accounting changes.
func (a *Allocator) Reserve(n uint64) error {
	if n == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capacity != 0 && a.userAlloc+n > a.capacity {
		log.WithFields(logger.Fields{
			"at":         "(Allocator) Reserve",
			"want":       n,
			"user_alloc": a.userAlloc,
			"capacity":   a.capacity,
		}).Warn("reservation_exceeds_capacity")
		return ErrOutOfMemory
	}
	a.ensureBackedLocked(a.userAlloc + n)
	a.userAlloc += n
	return nil
}

// Release returns n reserved bytes to the budget. Releasing more than is
// held means the caller's accounting is corrupt.
func (a *Allocator) Release(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.userAlloc {
		util.Panicf("hugealloc: releasing %d bytes with only %d allocated", n, a.userAlloc)
	}
	a.userAlloc -= n
}

// AllocRaw carves n bytes out of the arena. The buffer is never individually
// freed; it lives until Close. Returns nil when the capacity cannot cover it.
func (a *Allocator) AllocRaw(n uint64) []byte {
	if n == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capacity != 0 && a.userAlloc+n > a.capacity {
		log.WithFields(logger.Fields{
			"at":         "(Allocator) AllocRaw",
			"want":       n,
			"user_alloc": a.userAlloc,
			"capacity":   a.capacity,
		}).Warn("raw_alloc_exceeds_capacity")
		return nil
	}
	if uint64(len(a.active)) < n {
		a.growLocked(roundHuge(n))
	}
	buf := a.active[:n:n]
	a.active = a.active[n:]
	a.userAlloc += n
	return buf
}

// StatUserAlloc returns the bytes currently reserved or carved out.
func (a *Allocator) StatUserAlloc() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userAlloc
}

// GetStats returns a snapshot of the accounting counters.
func (a *Allocator) GetStats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		UserAlloc:     a.userAlloc,
		MappedBytes:   a.mappedBytes,
		HugeFallbacks: a.hugeFallbacks,
	}
}

// Close unmaps every slab. The allocator must not be used afterwards.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	for _, s := range a.slabs {
		if s.mapped {
			if err := unmapSlab(s.buf); err != nil {
				log.WithFields(logger.Fields{
					"at":    "(Allocator) Close",
					"bytes": len(s.buf),
					"error": err.Error(),
				}).Warn("munmap_failed")
			}
		}
	}
	a.slabs = nil
	a.active = nil
	a.mappedBytes = 0
	return nil
}

// ensureBackedLocked grows the arena until target bytes have backing.
func (a *Allocator) ensureBackedLocked(target uint64) {
	for a.mappedBytes < target {
		a.growLocked(roundHuge(target - a.mappedBytes))
	}
}

// growLocked maps one slab of size bytes (a hugepage multiple) and makes it
// the active carve region.
func (a *Allocator) growLocked(size uint64) {
	buf, mapped := mapSlab(int(size))
	if !mapped {
		a.hugeFallbacks++
		log.WithFields(logger.Fields{
			"at":    "(Allocator) growLocked",
			"bytes": size,
		}).Debug("hugepage_unavailable_heap_fallback")
	}
	a.slabs = append(a.slabs, slab{buf: buf, mapped: mapped})
	a.mappedBytes += uint64(len(buf))
	a.active = buf
}

// roundHuge rounds n up to the hugepage granularity.
func roundHuge(n uint64) uint64 {
	return (n + hugePageSize - 1) / hugePageSize * hugePageSize
}
