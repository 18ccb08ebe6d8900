package transport

import (
	"fmt"
	"strings"
)

// Kind tags a transport implementation. Both endpoints of a session must
// carry the same kind; a connect request naming a kind the server does not
// run is refused before any resources are touched.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUDP
	KindLoopback
)

func (k Kind) String() string {
	switch k {
	case KindUDP:
		return "udp"
	case KindLoopback:
		return "loopback"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a configuration string to a transport kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "udp":
		return KindUDP, nil
	case "loopback":
		return KindLoopback, nil
	default:
		return KindInvalid, ErrUnknownTransportKind
	}
}
