package transport

import (
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Transport is the contract the session layer holds against the data-path
// fabric. Implementations are constructed per physical port and stay alive
// for the lifetime of their Rpc.
type Transport interface {
	// Kind returns the implementation tag endpoints are matched on.
	Kind() Kind

	// PhyPort returns the physical port index this transport manages.
	PhyPort() uint16

	// MTU returns the per-packet payload capacity of the fabric. The session
	// layer sizes per-session buffer reservations from it.
	MTU() int

	// FillRoutingInfo writes this transport's local fabric address into ri.
	FillRoutingInfo(ri *RoutingInfo) error

	// ResolveRoutingInfo parses a peer's blob into a sendable route.
	ResolveRoutingInfo(ri *RoutingInfo) (Route, error)

	// Close releases the fabric resources.
	Close() error
}

// New constructs the transport backing the given kind on a physical port.
// bindAddr is implementation specific; the UDP transport treats it as the
// local listen address and may be empty for an OS-assigned port.
func New(kind Kind, phyPort uint16, bindAddr string) (Transport, error) {
	log.WithFields(logger.Fields{
		"at":       "transport.New",
		"kind":     kind.String(),
		"phy_port": phyPort,
	}).Debug("constructing_transport")
	switch kind {
	case KindUDP:
		return NewUDPTransport(phyPort, bindAddr)
	case KindLoopback:
		return NewLoopbackTransport(phyPort), nil
	default:
		log.WithFields(logger.Fields{
			"at":   "transport.New",
			"kind": uint8(kind),
		}).Error("unknown_transport_kind")
		return nil, ErrUnknownTransportKind
	}
}
