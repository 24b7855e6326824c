package discord

import "sync"

// Noop is the transport used when the platform has no RPC socket to speak
// to. It tracks connection state so the mirroring logic behaves the same,
// and discards every activity update.
type Noop struct {
	mu        sync.Mutex
	connected bool
	handlers  Handlers
}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) SetHandlers(h Handlers) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = h
}

func (n *Noop) Connect() error {
	n.mu.Lock()
	if n.connected {
		n.mu.Unlock()
		return nil
	}
	n.connected = true
	h := n.handlers
	n.mu.Unlock()

	if h.Connected != nil {
		h.Connected()
	}
	return nil
}

func (n *Noop) Disconnect() {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return
	}
	n.connected = false
	h := n.handlers
	n.mu.Unlock()

	if h.Disconnected != nil {
		h.Disconnected()
	}
}

func (n *Noop) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

func (n *Noop) SetActivity(Activity) error {
	if !n.Connected() {
		return ErrNotConnected
	}
	return nil
}

func (n *Noop) ClearActivity() error {
	if !n.Connected() {
		return ErrNotConnected
	}
	return nil
}
