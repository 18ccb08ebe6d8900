package transport

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// LoopbackMTU is small on purpose so buffer-accounting limits are easy to
// reach in tests.
const LoopbackMTU = 1024

const loopbackFamily byte = 0x7f

// loopbackSeq hands every loopback transport in the process a distinct tag.
var loopbackSeq uint32

// Compile-time check that LoopbackTransport implements Transport
var _ Transport = (*LoopbackTransport)(nil)

// LoopbackTransport is an in-process fabric. Routing blobs carry a
// process-local tag; resolving one returns a route naming that tag. No bytes
// ever leave the process.
type LoopbackTransport struct {
	phyPort uint16
	tag     uint32
}

func NewLoopbackTransport(phyPort uint16) *LoopbackTransport {
	return &LoopbackTransport{
		phyPort: phyPort,
		tag:     atomic.AddUint32(&loopbackSeq, 1),
	}
}

func (t *LoopbackTransport) Kind() Kind {
	return KindLoopback
}

func (t *LoopbackTransport) PhyPort() uint16 {
	return t.phyPort
}

func (t *LoopbackTransport) MTU() int {
	return LoopbackMTU
}

func (t *LoopbackTransport) FillRoutingInfo(ri *RoutingInfo) error {
	*ri = RoutingInfo{}
	ri[0] = loopbackFamily
	binary.BigEndian.PutUint32(ri[1:5], t.tag)
	return nil
}

func (t *LoopbackTransport) ResolveRoutingInfo(ri *RoutingInfo) (Route, error) {
	if ri.IsZero() {
		return nil, ErrRoutingInfoEmpty
	}
	if ri[0] != loopbackFamily {
		return nil, ErrMalformedRoutingInfo
	}
	return loopbackRoute{tag: binary.BigEndian.Uint32(ri[1:5])}, nil
}

func (t *LoopbackTransport) Close() error {
	return nil
}

type loopbackRoute struct {
	tag uint32
}

func (r loopbackRoute) String() string {
	return fmt.Sprintf("loopback:%d", r.tag)
}
