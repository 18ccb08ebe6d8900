package transport

import "github.com/samber/oops"

var (
	// ErrUnknownTransportKind is returned for a kind no implementation backs.
	ErrUnknownTransportKind = oops.Errorf("unknown transport kind")

	// ErrRoutingInfoEmpty is returned when resolving a blob that was never
	// filled.
	ErrRoutingInfoEmpty = oops.Errorf("routing info is empty")

	// ErrMalformedRoutingInfo is returned when a blob does not parse as this
	// transport's address format.
	ErrMalformedRoutingInfo = oops.Errorf("malformed routing info")
)
