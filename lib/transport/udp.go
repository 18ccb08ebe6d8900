package transport

import (
	"encoding/binary"
	"net"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// DefaultUDPMTU is an Ethernet payload minus IPv4 and UDP headers.
const DefaultUDPMTU = 1472

// routing blob address family tags
const (
	udpFamilyNone byte = 0
	udpFamilyV4   byte = 1
	udpFamilyV6   byte = 2
)

// Compile-time check that UDPTransport implements Transport
var _ Transport = (*UDPTransport)(nil)

// UDPTransport is a kernel-UDP data-path fabric. The socket bound here is the
// address advertised in routing info; the session layer only ever asks for
// that address and for peer address resolution.
type UDPTransport struct {
	phyPort uint16
	conn    *net.UDPConn
	local   *net.UDPAddr
}

// NewUDPTransport binds the data-path socket. An empty bindAddr binds an
// OS-assigned port on all interfaces.
func NewUDPTransport(phyPort uint16, bindAddr string) (*UDPTransport, error) {
	if bindAddr == "" {
		bindAddr = ":0"
	}
	laddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, oops.Errorf("resolving udp bind address %q: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, oops.Errorf("binding udp transport socket: %w", err)
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	log.WithFields(logger.Fields{
		"at":       "transport.NewUDPTransport",
		"phy_port": phyPort,
		"local":    local.String(),
	}).Debug("udp_transport_bound")
	return &UDPTransport{phyPort: phyPort, conn: conn, local: local}, nil
}

func (t *UDPTransport) Kind() Kind {
	return KindUDP
}

func (t *UDPTransport) PhyPort() uint16 {
	return t.phyPort
}

func (t *UDPTransport) MTU() int {
	return DefaultUDPMTU
}

// FillRoutingInfo writes family, IP and port of the data-path socket. A
// socket bound to the unspecified address advertises the host's first global
// unicast address instead, falling back to loopback.
func (t *UDPTransport) FillRoutingInfo(ri *RoutingInfo) error {
	ip := t.local.IP
	if ip == nil || ip.IsUnspecified() {
		ip = localUnicastIP()
	}
	*ri = RoutingInfo{}
	if ip4 := ip.To4(); ip4 != nil {
		ri[0] = udpFamilyV4
		copy(ri[1:5], ip4)
		binary.BigEndian.PutUint16(ri[5:7], uint16(t.local.Port))
		return nil
	}
	ri[0] = udpFamilyV6
	copy(ri[1:17], ip.To16())
	binary.BigEndian.PutUint16(ri[17:19], uint16(t.local.Port))
	return nil
}

// ResolveRoutingInfo parses a peer blob into a UDP route.
func (t *UDPTransport) ResolveRoutingInfo(ri *RoutingInfo) (Route, error) {
	switch ri[0] {
	case udpFamilyV4:
		addr := &net.UDPAddr{
			IP:   net.IPv4(ri[1], ri[2], ri[3], ri[4]),
			Port: int(binary.BigEndian.Uint16(ri[5:7])),
		}
		if addr.Port == 0 {
			return nil, ErrMalformedRoutingInfo
		}
		return udpRoute{addr: addr}, nil
	case udpFamilyV6:
		ip := make(net.IP, 16)
		copy(ip, ri[1:17])
		addr := &net.UDPAddr{IP: ip, Port: int(binary.BigEndian.Uint16(ri[17:19]))}
		if addr.Port == 0 {
			return nil, ErrMalformedRoutingInfo
		}
		return udpRoute{addr: addr}, nil
	case udpFamilyNone:
		return nil, ErrRoutingInfoEmpty
	default:
		log.WithFields(logger.Fields{
			"at":     "(UDPTransport) ResolveRoutingInfo",
			"family": ri[0],
		}).Warn("unknown_address_family")
		return nil, ErrMalformedRoutingInfo
	}
}

func (t *UDPTransport) Close() error {
	log.WithFields(logger.Fields{
		"at":    "(UDPTransport) Close",
		"local": t.local.String(),
	}).Debug("closing_udp_transport")
	return t.conn.Close()
}

type udpRoute struct {
	addr *net.UDPAddr
}

func (r udpRoute) String() string {
	return r.addr.String()
}

// localUnicastIP picks the host address advertised when the socket is bound
// to the wildcard. First global unicast interface address wins.
func localUnicastIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ipn.IP.IsGlobalUnicast() {
				return ipn.IP
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
