package presence

import (
	"context"
	"log"
	"sync"

	"watchcord/internal/discord"
)

// Preferences supplies the user half of the enabled check and the
// title-reveal flag. Values are read fresh on every check, never cached.
type Preferences interface {
	PresenceEnabled() bool
	ShowTitles() bool
}

// Status is the snapshot published to observers on every presence or
// connection change.
type Status struct {
	Presence  Presence `json:"presence"`
	Connected bool     `json:"connected"`
}

// Mirror owns the current Presence and a transport to the chat client.
// Construct one per process with New, then Start it. State assignment
// and observer notification happen on the calling goroutine; connects
// and pushes run on the serial worker.
type Mirror struct {
	capability   bool
	prefs        Preferences
	episodes     EpisodeSource
	newTransport func() discord.Transport

	mu        sync.RWMutex
	transport discord.Transport
	current   Presence

	subMu       sync.Mutex
	subscribers map[chan Status]struct{}

	tasks chan func()

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New wires a Mirror. capability is the platform half of the enabled
// check, fixed for the process lifetime. newTransport is invoked once
// here and again on every enabled Reset.
func New(capability bool, prefs Preferences, episodes EpisodeSource, newTransport func() discord.Transport) *Mirror {
	m := &Mirror{
		capability:   capability,
		prefs:        prefs,
		episodes:     episodes,
		newTransport: newTransport,
		current:      Idle(),
		subscribers:  make(map[chan Status]struct{}),
		tasks:        make(chan func(), 64),
		done:         make(chan struct{}),
	}
	m.transport = newTransport()
	m.transport.SetHandlers(m.handlers())
	return m
}

func (m *Mirror) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		go m.run(ctx)
	})
}

// Stop shuts down the worker, then clears the remote status so the
// chat client does not keep showing a stale activity after exit.
func (m *Mirror) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()
	if t.Connected() {
		if err := t.ClearActivity(); err != nil {
			log.Printf("presence clear: %v", err)
		}
		t.Disconnect()
	}
}

func (m *Mirror) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-m.tasks:
			task()
		}
	}
}

// enqueue hands a task to the serial worker. Tasks submitted before
// Start sit in the buffer until the worker comes up; after Stop they
// are discarded.
func (m *Mirror) enqueue(task func()) {
	select {
	case m.tasks <- task:
	case <-m.done:
	}
}

// Enabled reports whether the feature is on right now: platform
// capability and the live user preference.
func (m *Mirror) Enabled() bool {
	return m.capability && m.prefs.PresenceEnabled()
}

// UpdatePresence replaces the current value. Equal values are a no-op.
// Observers are notified before the method returns; the push to the
// transport is queued. A push always sends whatever the current value
// is when it runs, so rapid sequences may collapse into fewer sends.
func (m *Mirror) UpdatePresence(p Presence) {
	m.mu.Lock()
	if p == m.current {
		m.mu.Unlock()
		return
	}
	m.current = p
	t := m.transport
	m.mu.Unlock()

	m.publish(Status{Presence: p, Connected: t.Connected()})
	m.enqueue(m.pushIfPossible)
}

// Setup schedules the initial connect when the feature is enabled and
// the transport is down. It returns once the attempt is queued, not
// once it completes.
func (m *Mirror) Setup() {
	if !m.Enabled() {
		return
	}
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()
	if t.Connected() {
		return
	}
	m.enqueue(m.connect)
}

// Reset reacts to the feature being toggled at runtime; the host calls
// it after changing the preference. Enabled: the transport object is
// discarded, rebuilt and reconnected. Disabled: an open connection is
// dropped, nothing else happens.
func (m *Mirror) Reset() {
	m.enqueue(m.reset)
}

func (m *Mirror) reset() {
	if !m.Enabled() {
		m.mu.RLock()
		t := m.transport
		m.mu.RUnlock()
		if t.Connected() {
			t.Disconnect()
		}
		return
	}

	m.mu.Lock()
	old := m.transport
	t := m.newTransport()
	t.SetHandlers(m.handlers())
	m.transport = t
	m.mu.Unlock()

	if old.Connected() {
		old.Disconnect()
	}
	m.connect()
}

// connect runs on the worker. The enabled check happens here rather
// than at enqueue time so a preference flipped while the task was
// queued wins.
func (m *Mirror) connect() {
	if !m.Enabled() {
		return
	}
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()
	if t.Connected() {
		return
	}
	if err := t.Connect(); err != nil {
		log.Printf("presence connect: %v", err)
	}
}

// pushIfPossible runs on the worker. Connected: serialize the current
// value and send it. Not connected: try to connect instead; the connect
// callback re-sends the current value, so nothing is queued for retry.
func (m *Mirror) pushIfPossible() {
	m.mu.RLock()
	t := m.transport
	current := m.current
	m.mu.RUnlock()

	if !t.Connected() {
		m.connect()
		return
	}

	act := BuildActivity(current, m.prefs.ShowTitles(), m.episodes)
	if err := t.SetActivity(act); err != nil {
		log.Printf("presence push: %v", err)
		return
	}
	log.Printf("presence updated: %s", current.State)
}

// Current returns the live status snapshot.
func (m *Mirror) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{Presence: m.current, Connected: m.transport.Connected()}
}

func (m *Mirror) Subscribe() chan Status {
	ch := make(chan Status, 1)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *Mirror) Unsubscribe(ch chan Status) {
	m.subMu.Lock()
	_, exists := m.subscribers[ch]
	delete(m.subscribers, ch)
	m.subMu.Unlock()
	if exists {
		close(ch)
	}
}

func (m *Mirror) publish(s Status) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}

func (m *Mirror) publishStatus() {
	m.publish(m.Current())
}

func (m *Mirror) handlers() discord.Handlers {
	return discord.Handlers{
		Connected:    m.handleConnect,
		Disconnected: m.handleDisconnect,
		Err:          m.handleError,
	}
}

// handleConnect fires on the goroutine that called Connect, which for
// the mirror is always the serial worker, so pushing inline here stays
// serialized. The push closes the gap where state changed while the
// transport was down.
func (m *Mirror) handleConnect() {
	m.pushIfPossible()
	m.publishStatus()
}

func (m *Mirror) handleDisconnect() {
	m.publishStatus()
}

func (m *Mirror) handleError(code int, message string) {
	log.Printf("presence transport error %d: %s", code, message)
}
