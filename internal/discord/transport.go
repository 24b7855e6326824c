package discord

import "errors"

var ErrNotConnected = errors.New("not connected")

// Handlers receives connection lifecycle events from a transport. The
// Connected callback fires after a completed handshake, Disconnected after
// the connection is lost for any reason, and Err for protocol-level errors
// reported by the peer. Callbacks may arrive from the transport's read
// goroutine and must not block.
type Handlers struct {
	Connected    func()
	Disconnected func()
	Err          func(code int, message string)
}

// Transport carries activity updates to the chat client. Implementations
// are safe for concurrent use.
type Transport interface {
	// Connect dials the client and performs the handshake. Calling
	// Connect while connected is a no-op.
	Connect() error
	// Disconnect tears down the connection. Safe to call when not
	// connected.
	Disconnect()
	Connected() bool
	SetActivity(Activity) error
	ClearActivity() error
	// SetHandlers must be called before Connect.
	SetHandlers(Handlers)
}
