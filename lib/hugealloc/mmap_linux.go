//go:build linux

package hugealloc

import "golang.org/x/sys/unix"

// mapSlab obtains size bytes, preferring 2 MiB hugepages. The bool reports
// whether the slab came from mmap and needs unmapping; heap fallback slabs
// are garbage collected.
func mapSlab(size int) ([]byte, bool) {
	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE|unix.MAP_HUGETLB)
	if err != nil {
		return make([]byte, size), false
	}
	return buf, true
}

func unmapSlab(buf []byte) error {
	return unix.Munmap(buf)
}
