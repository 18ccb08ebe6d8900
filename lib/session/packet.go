package session

import (
	"fmt"

	"github.com/go-i2p/logger"

	"github.com/go-fabrpc/go-fabrpc/lib/util"
)

var log = logger.GetGoI2PLogger()

// PacketType identifies a management packet. The zero value is invalid so a
// zeroed buffer can never decode into a dispatchable packet.
type PacketType uint8

const (
	PacketConnectReq PacketType = iota + 1
	PacketConnectResp
	PacketDisconnectReq
	PacketDisconnectResp
)

// Valid reports whether t is one of the four defined packet types.
func (t PacketType) Valid() bool {
	return t >= PacketConnectReq && t <= PacketDisconnectResp
}

// IsRequest reports whether t is a request type.
func (t PacketType) IsRequest() bool {
	return t == PacketConnectReq || t == PacketDisconnectReq
}

func (t PacketType) String() string {
	switch t {
	case PacketConnectReq:
		return "ConnectReq"
	case PacketConnectResp:
		return "ConnectResp"
	case PacketDisconnectReq:
		return "DisconnectReq"
	case PacketDisconnectResp:
		return "DisconnectResp"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

// ErrCode is the verdict carried by a management response. Requests always
// carry ErrCodeNoError.
type ErrCode uint8

const (
	ErrCodeNoError ErrCode = iota
	ErrCodeInvalidRemotePort
	ErrCodeInvalidTransport
	ErrCodeRecvsExhausted
	ErrCodeTooManySessions
	ErrCodeRoutingResolutionFailure
	ErrCodeOutOfMemory
)

// Valid reports whether c is one of the defined error codes.
func (c ErrCode) Valid() bool {
	return c <= ErrCodeOutOfMemory
}

// IsError reports whether c is a failure verdict.
func (c ErrCode) IsError() bool {
	return c != ErrCodeNoError
}

func (c ErrCode) String() string {
	switch c {
	case ErrCodeNoError:
		return "NoError"
	case ErrCodeInvalidRemotePort:
		return "InvalidRemotePort"
	case ErrCodeInvalidTransport:
		return "InvalidTransport"
	case ErrCodeRecvsExhausted:
		return "RecvsExhausted"
	case ErrCodeTooManySessions:
		return "TooManySessions"
	case ErrCodeRoutingResolutionFailure:
		return "RoutingResolutionFailure"
	case ErrCodeOutOfMemory:
		return "OutOfMemory"
	default:
		return fmt.Sprintf("ErrCode(%d)", uint8(c))
	}
}

// PacketWireSize is the exact size of a management packet datagram.
const PacketWireSize = 2 + TokenSize + 2*EndpointWireSize

// Packet is one session-management datagram. Both endpoints ride every
// packet so each handler can validate the full connection identity without
// consulting anything beyond its own session table.
type Packet struct {
	Type    PacketType
	ErrCode ErrCode
	Token   Token
	Client  Endpoint
	Server  Endpoint
}

// Response derives the response packet for a request, carrying the given
// verdict and the request's token and endpoints. The caller mutates the
// endpoints first when the verdict completes them (connect success fills the
// server's session number and routing info). Calling this on a response is a
// protocol violation.
func (p *Packet) Response(code ErrCode) Packet {
	if !p.Type.IsRequest() {
		util.Panicf("session: Response called on non-request packet %s", p.String())
	}
	return Packet{
		Type:    p.Type + 1,
		ErrCode: code,
		Token:   p.Token,
		Client:  p.Client,
		Server:  p.Server,
	}
}

// MarshalBinary serializes the packet to its fixed wire form.
func (p *Packet) MarshalBinary() ([]byte, error) {
	if !p.Type.Valid() {
		return nil, ErrBadPacketType
	}
	if !p.ErrCode.Valid() {
		return nil, ErrBadErrCode
	}
	buf := make([]byte, PacketWireSize)
	buf[0] = byte(p.Type)
	buf[1] = byte(p.ErrCode)
	copy(buf[2:2+TokenSize], p.Token[:])
	p.Client.marshalTo(buf[2+TokenSize : 2+TokenSize+EndpointWireSize])
	p.Server.marshalTo(buf[2+TokenSize+EndpointWireSize : PacketWireSize])
	return buf, nil
}

// UnmarshalBinary parses a packet from wire form. Trailing bytes beyond
// PacketWireSize are ignored so padded datagrams still parse.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) < PacketWireSize {
		log.WithFields(logger.Fields{
			"at":   "session.Packet.UnmarshalBinary",
			"got":  len(data),
			"want": PacketWireSize,
		}).Debug("packet_truncated")
		return ErrPacketTruncated
	}
	typ := PacketType(data[0])
	if !typ.Valid() {
		return ErrBadPacketType
	}
	code := ErrCode(data[1])
	if !code.Valid() {
		return ErrBadErrCode
	}
	p.Type = typ
	p.ErrCode = code
	copy(p.Token[:], data[2:2+TokenSize])
	p.Client.unmarshalFrom(data[2+TokenSize : 2+TokenSize+EndpointWireSize])
	p.Server.unmarshalFrom(data[2+TokenSize+EndpointWireSize : PacketWireSize])
	return nil
}

// IsRequest reports whether the packet is a request.
func (p *Packet) IsRequest() bool {
	return p.Type.IsRequest()
}

func (p *Packet) String() string {
	return fmt.Sprintf("[%s %s token %s, client %s, server %s]",
		p.Type, p.ErrCode, p.Token, p.Client.String(), p.Server.String())
}
