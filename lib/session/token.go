package session

import "github.com/google/uuid"

// TokenSize is the serialized size of a connect token.
const TokenSize = 16

// Token is the 128-bit nonce a client generates for each connect attempt.
// The same token rides every retransmission of the attempt and every packet
// of the session's eventual teardown, which is what lets the server-side
// deduplication table distinguish a retransmit from a new attempt.
type Token [TokenSize]byte

// NilToken is the zero token. No live session carries it.
var NilToken Token

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token(uuid.New())
}

// IsNil reports whether the token is the zero token.
func (t Token) IsNil() bool {
	return t == NilToken
}

func (t Token) String() string {
	return uuid.UUID(t).String()
}
