package session

import "github.com/samber/oops"

var (
	// ErrHostAddrTooLong is returned when a host address exceeds the fixed
	// wire field.
	ErrHostAddrTooLong = oops.Errorf("host address exceeds %d bytes", MaxHostAddrLen)

	// ErrPacketTruncated is returned when a datagram is shorter than a
	// management packet.
	ErrPacketTruncated = oops.Errorf("management packet truncated")

	// ErrBadPacketType is returned for an undefined packet type byte.
	ErrBadPacketType = oops.Errorf("undefined management packet type")

	// ErrBadErrCode is returned for an undefined error code byte.
	ErrBadErrCode = oops.Errorf("undefined management error code")
)
