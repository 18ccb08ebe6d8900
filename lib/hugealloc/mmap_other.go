//go:build !linux

package hugealloc

// mapSlab falls back to the Go heap on platforms without MAP_HUGETLB.
func mapSlab(size int) ([]byte, bool) {
	return make([]byte, size), false
}

func unmapSlab(buf []byte) error {
	return nil
}
