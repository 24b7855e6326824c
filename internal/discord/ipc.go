package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// The RPC server allows 5 activity updates per 20 seconds; keeping a
// small burst and refilling at that sustained rate stays under it.
const activityInterval = 4 * time.Second
const activityBurst = 5

type handshakePayload struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string `json:"cmd"`
	Args  any    `json:"args,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type serverEvent struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Data  json.RawMessage `json:"data"`
	Nonce string          `json:"nonce"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client is the rich presence transport over the chat client's local RPC
// socket.
type Client struct {
	appID   string
	limiter *rate.Limiter

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	handlers  Handlers
	nonce     uint64
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewClient(appID string) *Client {
	return &Client{
		appID:   appID,
		limiter: rate.NewLimiter(rate.Every(activityInterval), activityBurst),
	}
}

func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect discovers the RPC socket, performs the versioned handshake and
// starts the read loop. The Connected handler fires before Connect returns.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := dialSocket()
	if err != nil {
		return err
	}
	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.connected {
		// Lost a connect race; keep the existing connection.
		c.mu.Unlock()
		cancel()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	c.ctx, c.cancel = ctx, cancel
	h := c.handlers
	c.mu.Unlock()

	go c.readLoop(conn)

	if h.Connected != nil {
		h.Connected()
	}
	return nil
}

func (c *Client) handshake(conn net.Conn) error {
	hello, err := json.Marshal(handshakePayload{V: 1, ClientID: c.appID})
	if err != nil {
		return fmt.Errorf("encoding handshake: %w", err)
	}

	conn.SetDeadline(time.Now().Add(dialTimeout))
	defer conn.SetDeadline(time.Time{})

	if err := writeFrame(conn, opHandshake, hello); err != nil {
		return fmt.Errorf("handshake write: %w", err)
	}
	op, payload, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}

	switch op {
	case opFrame:
		var ev serverEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decoding handshake response: %w", err)
		}
		if ev.Evt != "READY" {
			return fmt.Errorf("unexpected handshake event %q", ev.Evt)
		}
		return nil
	case opClose:
		var ed errorData
		json.Unmarshal(payload, &ed)
		return fmt.Errorf("handshake rejected: %s (code %d)", ed.Message, ed.Code)
	default:
		return fmt.Errorf("unexpected handshake opcode %d", op)
	}
}

// Disconnect closes the connection. The Disconnected handler fires exactly
// once per established connection, whether the close was local or remote.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.teardown(conn)
}

func (c *Client) teardown(conn net.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = nil
	c.connected = false
	c.cancel()
	h := c.handlers
	c.mu.Unlock()

	conn.Close()
	if h.Disconnected != nil {
		h.Disconnected()
	}
}

func (c *Client) readLoop(conn net.Conn) {
	for {
		op, payload, err := readFrame(conn)
		if err != nil {
			c.teardown(conn)
			return
		}

		switch op {
		case opPing:
			c.mu.Lock()
			if c.conn == conn {
				if err := writeFrame(conn, opPong, payload); err != nil {
					log.Printf("discord: pong failed: %v", err)
				}
			}
			c.mu.Unlock()
		case opFrame:
			c.handleEvent(payload)
		case opClose:
			c.teardown(conn)
			return
		}
	}
}

func (c *Client) handleEvent(payload []byte) {
	var ev serverEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("discord: undecodable frame: %v", err)
		return
	}
	if ev.Evt != "ERROR" {
		return
	}
	var ed errorData
	json.Unmarshal(ev.Data, &ed)

	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()
	if h.Err != nil {
		h.Err(ed.Code, ed.Message)
	}
}

// SetActivity publishes an activity update, blocking briefly when the
// update rate limit is exhausted.
func (c *Client) SetActivity(a Activity) error {
	sanitized := a.sanitized()
	return c.sendActivity(&sanitized)
}

// ClearActivity removes any published activity.
func (c *Client) ClearActivity() error {
	return c.sendActivity(nil)
}

func (c *Client) sendActivity(a *Activity) error {
	c.mu.Lock()
	ctx, connected := c.ctx, c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.nonce++
	payload, err := json.Marshal(command{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: os.Getpid(), Activity: a},
		Nonce: strconv.FormatUint(c.nonce, 10),
	})
	if err != nil {
		return fmt.Errorf("encoding activity: %w", err)
	}
	if err := writeFrame(c.conn, opFrame, payload); err != nil {
		return fmt.Errorf("writing activity: %w", err)
	}
	return nil
}
