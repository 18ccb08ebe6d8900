// Package hugealloc owns the memory budget sessions draw on. Backing slabs
// are mmapped with MAP_HUGETLB in 2 MiB multiples on Linux, falling back to
// the Go heap when hugepages are unavailable; on other platforms the heap is
// used directly.
//
// The session layer interacts with the budget two ways: Reserve/Release
// account a session's working set against the capacity without handing out
// bytes, and AllocRaw carves never-freed buffers out of the arena. Both draw
// from the same capacity, so hoarding raw memory makes later reservations
// fail, which is exactly how exhaustion is produced in tests.
package hugealloc
