package session

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-fabrpc/go-fabrpc/lib/transport"
)

const (
	// MaxHostAddrLen is the fixed width of the host address field. Host
	// addresses are "host:port" strings naming the SM UDP listener of the
	// owning process, NUL padded on the wire.
	MaxHostAddrLen = 64

	// EndpointWireSize is the serialized size of an Endpoint.
	EndpointWireSize = 6 + MaxHostAddrLen + transport.RoutingInfoSize
)

const (
	// InvalidSessionNum marks an endpoint whose session number has not been
	// assigned yet. A client fills this into the server endpoint of a connect
	// request; the server replaces it when it commits the session.
	InvalidSessionNum uint16 = 0xFFFF

	// InvalidPhyPort is a physical port index that no transport manages.
	InvalidPhyPort uint16 = 0xFFFF
)

// Endpoint identifies one side of a session. All fields except SessionNum and
// RoutingInfo are fixed by the owner before the first packet is sent; the
// session number and routing info of a server endpoint are completed by the
// server when it commits the session.
type Endpoint struct {
	TransportKind transport.Kind
	RpcID         uint8
	PhyPort       uint16
	SessionNum    uint16
	HostAddr      [MaxHostAddrLen]byte
	RoutingInfo   transport.RoutingInfo
}

// NewEndpoint builds an endpoint with the host address validated and padded.
func NewEndpoint(kind transport.Kind, rpcID uint8, phyPort, sessionNum uint16, hostAddr string) (Endpoint, error) {
	ep := Endpoint{
		TransportKind: kind,
		RpcID:         rpcID,
		PhyPort:       phyPort,
		SessionNum:    sessionNum,
	}
	if err := ep.SetHost(hostAddr); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

// SetHost stores a host address, padding it to the fixed field width.
func (e *Endpoint) SetHost(hostAddr string) error {
	if len(hostAddr) > MaxHostAddrLen {
		return ErrHostAddrTooLong
	}
	var buf [MaxHostAddrLen]byte
	copy(buf[:], hostAddr)
	e.HostAddr = buf
	return nil
}

// Host returns the host address with wire padding removed.
func (e *Endpoint) Host() string {
	return string(bytes.TrimRight(e.HostAddr[:], "\x00"))
}

// Matches reports whether two endpoints name the same session slot: same
// transport kind, owning process, Rpc, physical port and session number.
// Routing info is excluded so a peer that re-filled its fabric address still
// matches its own live session.
func (e *Endpoint) Matches(o *Endpoint) bool {
	return e.TransportKind == o.TransportKind &&
		e.RpcID == o.RpcID &&
		e.PhyPort == o.PhyPort &&
		e.SessionNum == o.SessionNum &&
		e.HostAddr == o.HostAddr
}

// SamePeer reports whether two endpoints name the same Rpc instance without
// regard to the session slot. Used to verify the server endpoint of a connect
// response before the client has learned the server's session number.
func (e *Endpoint) SamePeer(o *Endpoint) bool {
	return e.TransportKind == o.TransportKind &&
		e.RpcID == o.RpcID &&
		e.PhyPort == o.PhyPort &&
		e.HostAddr == o.HostAddr
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("[host %s, rpc %d, port %d, session %d]",
		e.Host(), e.RpcID, e.PhyPort, e.SessionNum)
}

// marshalTo writes the endpoint into buf, which must hold EndpointWireSize
// bytes.
func (e *Endpoint) marshalTo(buf []byte) {
	buf[0] = byte(e.TransportKind)
	buf[1] = e.RpcID
	binary.BigEndian.PutUint16(buf[2:4], e.PhyPort)
	binary.BigEndian.PutUint16(buf[4:6], e.SessionNum)
	copy(buf[6:6+MaxHostAddrLen], e.HostAddr[:])
	copy(buf[6+MaxHostAddrLen:EndpointWireSize], e.RoutingInfo[:])
}

// unmarshalFrom reads the endpoint out of buf, which must hold
// EndpointWireSize bytes.
func (e *Endpoint) unmarshalFrom(buf []byte) {
	e.TransportKind = transport.Kind(buf[0])
	e.RpcID = buf[1]
	e.PhyPort = binary.BigEndian.Uint16(buf[2:4])
	e.SessionNum = binary.BigEndian.Uint16(buf[4:6])
	copy(e.HostAddr[:], buf[6:6+MaxHostAddrLen])
	copy(e.RoutingInfo[:], buf[6+MaxHostAddrLen:EndpointWireSize])
}
