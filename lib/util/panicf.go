package util

import (
	"fmt"
)

// Panicf reports a defect: a condition that valid wire input alone cannot
// produce, so it marks a bug in this process or a peer breaking the
// handshake contract. The message is logged before the panic so it survives
// even when a test swallows the panic with recover.
func Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	log.Error(s)
	panic(s)
}
