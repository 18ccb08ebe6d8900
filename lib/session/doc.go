// Package session defines the entities of the fabrpc session-management
// control plane: session endpoints, session records, connect tokens, and the
// fixed-size management packet that travels over the out-of-band UDP channel.
//
// # Overview
//
// A session is a logical connection between exactly one client-role endpoint
// and one server-role endpoint. Each side of the connection keeps its own
// Session record inside its Rpc instance; the two records reference each
// other through the endpoint pair negotiated during connect.
//
// # Wire Format
//
// Management packets are single datagrams of exactly PacketWireSize bytes,
// big-endian throughout:
//   - type (1 byte), error code (1 byte)
//   - token (16 bytes)
//   - client endpoint (EndpointWireSize bytes)
//   - server endpoint (EndpointWireSize bytes)
//
// Endpoints serialize as transport kind (1), rpc id (1), physical port (2),
// session number (2), host address (MaxHostAddrLen, NUL padded) and opaque
// routing info bytes. There are no variable-length fields, so a packet either
// arrives whole or is rejected.
//
// # Lifecycle
//
// Client sessions are born in StateConnectInProgress and advance to
// StateConnected or StateError when the connect verdict arrives. Server
// sessions are committed directly in StateConnected; their teardown passes
// through StateDisconnectInProgress inside a single handler invocation.
// StateError is terminal and leaves the slot occupied until the owner buries
// it.
package session
