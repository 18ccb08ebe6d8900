package transport

import "fmt"

// RoutingInfoSize is the fixed width of the opaque routing blob carried by
// endpoints and management packets. Large enough for any implementation here;
// unused tail bytes stay zero.
const RoutingInfoSize = 48

// RoutingInfo is a transport's serialized fabric address. Opaque outside this
// package.
type RoutingInfo [RoutingInfoSize]byte

// IsZero reports whether the blob has never been filled.
func (ri *RoutingInfo) IsZero() bool {
	return *ri == RoutingInfo{}
}

func (ri RoutingInfo) String() string {
	return fmt.Sprintf("%x", ri[:8])
}

// Route is a resolved peer address the data path can send to.
type Route interface {
	String() string
}
