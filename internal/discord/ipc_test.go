package discord

import (
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type recvFrame struct {
	op      int32
	payload []byte
}

// fakeRPC serves the handshake half of the RPC protocol on a real unix
// socket so the client under test runs its full connect path.
type fakeRPC struct {
	t      *testing.T
	ln     net.Listener
	frames chan recvFrame

	rejectCode    int
	rejectMessage string

	mu   sync.Mutex
	conn net.Conn
}

func newFakeRPC(t *testing.T) *fakeRPC {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	ln, err := net.Listen("unix", filepath.Join(dir, "discord-ipc-0"))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeRPC{t: t, ln: ln, frames: make(chan recvFrame, 16)}
	go f.acceptLoop()
	t.Cleanup(func() {
		ln.Close()
		f.closeConn()
	})
	return f
}

func (f *fakeRPC) acceptLoop() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.serve(conn)
	}
}

func (f *fakeRPC) serve(conn net.Conn) {
	op, payload, err := readFrame(conn)
	if err != nil || op != opHandshake {
		conn.Close()
		return
	}
	var hello handshakePayload
	if err := json.Unmarshal(payload, &hello); err != nil || hello.V != 1 {
		conn.Close()
		return
	}

	if f.rejectCode != 0 {
		reject, _ := json.Marshal(errorData{Code: f.rejectCode, Message: f.rejectMessage})
		writeFrame(conn, opClose, reject)
		conn.Close()
		return
	}

	ready := []byte(`{"cmd":"DISPATCH","evt":"READY","data":{"v":1}}`)
	if err := writeFrame(conn, opFrame, ready); err != nil {
		conn.Close()
		return
	}

	for {
		op, payload, err := readFrame(conn)
		if err != nil {
			return
		}
		f.frames <- recvFrame{op: op, payload: payload}
	}
}

func (f *fakeRPC) send(op int32, payload []byte) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		f.t.Fatal("no active connection")
	}
	if err := writeFrame(conn, op, payload); err != nil {
		f.t.Fatalf("send: %v", err)
	}
}

func (f *fakeRPC) closeConn() {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (f *fakeRPC) nextFrame(t *testing.T) recvFrame {
	t.Helper()
	select {
	case fr := <-f.frames:
		return fr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return recvFrame{}
	}
}

func newTestClient() *Client {
	c := NewClient("123456789012345678")
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	return c
}

func waitSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func TestClientConnect(t *testing.T) {
	newFakeRPC(t)

	c := newTestClient()
	connected := make(chan struct{}, 1)
	c.SetHandlers(Handlers{Connected: func() { connected <- struct{}{} }})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	waitSignal(t, connected, "Connected handler never fired")
	if !c.Connected() {
		t.Fatal("expected Connected() true")
	}

	// A second Connect while connected is a no-op.
	if err := c.Connect(); err != nil {
		t.Fatalf("repeat Connect: %v", err)
	}
}

func TestClientConnectNoSocket(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("TMPDIR", t.TempDir())

	c := newTestClient()
	err := c.Connect()
	if !errors.Is(err, ErrSocketNotFound) {
		t.Fatalf("expected ErrSocketNotFound, got %v", err)
	}
	if c.Connected() {
		t.Fatal("expected Connected() false")
	}
}

func TestClientHandshakeRejected(t *testing.T) {
	f := newFakeRPC(t)
	f.rejectCode = 4000
	f.rejectMessage = "Invalid Client ID"

	c := newTestClient()
	err := c.Connect()
	if err == nil {
		t.Fatal("expected handshake rejection")
	}
	if c.Connected() {
		t.Fatal("expected Connected() false after rejection")
	}
}

func TestClientSetActivity(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	err := c.SetActivity(Activity{
		Details: "Watching Cowboy Bebop",
		State:   "Episode 5",
		Assets:  &Assets{LargeImage: "watchcord", LargeText: "Cowboy Bebop"},
	})
	if err != nil {
		t.Fatalf("SetActivity: %v", err)
	}

	fr := f.nextFrame(t)
	if fr.op != opFrame {
		t.Fatalf("expected op %d, got %d", opFrame, fr.op)
	}

	var cmd struct {
		Cmd   string `json:"cmd"`
		Nonce string `json:"nonce"`
		Args  struct {
			PID      int       `json:"pid"`
			Activity *Activity `json:"activity"`
		} `json:"args"`
	}
	if err := json.Unmarshal(fr.payload, &cmd); err != nil {
		t.Fatalf("decoding command: %v", err)
	}
	if cmd.Cmd != "SET_ACTIVITY" {
		t.Fatalf("expected SET_ACTIVITY, got %q", cmd.Cmd)
	}
	if cmd.Nonce == "" {
		t.Fatal("expected a nonce")
	}
	if cmd.Args.PID <= 0 {
		t.Fatalf("expected caller pid, got %d", cmd.Args.PID)
	}
	if cmd.Args.Activity == nil || cmd.Args.Activity.Details != "Watching Cowboy Bebop" {
		t.Fatalf("unexpected activity: %+v", cmd.Args.Activity)
	}
}

func TestClientClearActivity(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.ClearActivity(); err != nil {
		t.Fatalf("ClearActivity: %v", err)
	}

	fr := f.nextFrame(t)
	var cmd struct {
		Cmd  string `json:"cmd"`
		Args struct {
			Activity *Activity `json:"activity"`
		} `json:"args"`
	}
	if err := json.Unmarshal(fr.payload, &cmd); err != nil {
		t.Fatalf("decoding command: %v", err)
	}
	if cmd.Cmd != "SET_ACTIVITY" || cmd.Args.Activity != nil {
		t.Fatalf("expected null activity, got %+v", cmd.Args.Activity)
	}
}

func TestClientSetActivityNotConnected(t *testing.T) {
	c := newTestClient()
	if err := c.SetActivity(Activity{Details: "nope"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientNonceIncrements(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	nonces := map[string]bool{}
	for i := 0; i < 3; i++ {
		if err := c.SetActivity(Activity{Details: "Just Chilling"}); err != nil {
			t.Fatalf("SetActivity: %v", err)
		}
		var cmd struct {
			Nonce string `json:"nonce"`
		}
		if err := json.Unmarshal(f.nextFrame(t).payload, &cmd); err != nil {
			t.Fatal(err)
		}
		if nonces[cmd.Nonce] {
			t.Fatalf("nonce %q reused", cmd.Nonce)
		}
		nonces[cmd.Nonce] = true
	}
}

func TestClientPingPong(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	f.send(opPing, []byte(`{"nonce":"p1"}`))

	fr := f.nextFrame(t)
	if fr.op != opPong {
		t.Fatalf("expected pong, got op %d", fr.op)
	}
	if string(fr.payload) != `{"nonce":"p1"}` {
		t.Fatalf("pong must echo the ping payload, got %q", fr.payload)
	}
}

func TestClientErrorEvent(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	type rpcErr struct {
		code int
		msg  string
	}
	errs := make(chan rpcErr, 1)
	c.SetHandlers(Handlers{Err: func(code int, msg string) { errs <- rpcErr{code, msg} }})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	f.send(opFrame, []byte(`{"cmd":"SET_ACTIVITY","evt":"ERROR","data":{"code":4002,"message":"bad payload"},"nonce":"1"}`))

	select {
	case e := <-errs:
		if e.code != 4002 || e.msg != "bad payload" {
			t.Fatalf("unexpected error event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Err handler never fired")
	}

	// A protocol error must not drop the connection.
	if !c.Connected() {
		t.Fatal("expected connection to survive an ERROR event")
	}
}

func TestClientRemoteClose(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	disconnected := make(chan struct{}, 1)
	c.SetHandlers(Handlers{Disconnected: func() { disconnected <- struct{}{} }})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	f.closeConn()

	waitSignal(t, disconnected, "Disconnected handler never fired")
	if c.Connected() {
		t.Fatal("expected Connected() false after remote close")
	}
}

func TestClientDisconnectFiresOnce(t *testing.T) {
	newFakeRPC(t)

	c := newTestClient()
	var mu sync.Mutex
	fired := 0
	c.SetHandlers(Handlers{Disconnected: func() {
		mu.Lock()
		fired++
		mu.Unlock()
	}})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.Disconnect()
	c.Disconnect()

	// Give the read loop time to observe the closed socket and race the
	// local teardown.
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("expected exactly one Disconnected callback, got %d", fired)
	}
}

func TestClientReconnect(t *testing.T) {
	f := newFakeRPC(t)

	c := newTestClient()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Disconnect()

	if err := c.Connect(); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer c.Disconnect()

	if err := c.SetActivity(Activity{Details: "Just Chilling"}); err != nil {
		t.Fatalf("SetActivity after reconnect: %v", err)
	}
	f.nextFrame(t)
}
