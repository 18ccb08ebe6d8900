package rpc

import "github.com/samber/oops"

var (
	// ErrNilNexus is returned when constructing an Rpc without a Nexus.
	ErrNilNexus = oops.Errorf("rpc requires a nexus")

	// ErrSmHandlerRequired is returned by session operations on an Rpc built
	// without a session event handler.
	ErrSmHandlerRequired = oops.Errorf("session operations require a session event handler")

	// ErrNoReceiveCredits is returned when the credit pool cannot cover
	// another session.
	ErrNoReceiveCredits = oops.Errorf("insufficient receive credits")

	// ErrTooManySessions is returned when the session table has reached its
	// configured capacity. Tombstones count; slots are never reused.
	ErrTooManySessions = oops.Errorf("session table is full")

	// ErrInvalidSessionNum is returned for a session number no slot was ever
	// assigned to.
	ErrInvalidSessionNum = oops.Errorf("session number out of range")

	// ErrSessionDestroyed is returned when operating on a tombstoned slot.
	ErrSessionDestroyed = oops.Errorf("session already destroyed")

	// ErrNotClientSession is returned when initiating teardown on a
	// server-role session; teardown belongs to the client side.
	ErrNotClientSession = oops.Errorf("session is not client role")

	// ErrConnectInProgress is returned when destroying a session whose
	// connect attempt has not resolved yet.
	ErrConnectInProgress = oops.Errorf("connect attempt still in progress")

	// ErrDisconnectInProgress is returned when teardown was already
	// initiated.
	ErrDisconnectInProgress = oops.Errorf("disconnect already in progress")
)
