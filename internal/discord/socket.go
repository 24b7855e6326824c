package discord

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var ErrSocketNotFound = errors.New("no local RPC socket found")

const dialTimeout = 2 * time.Second

// Available reports whether this platform can carry rich presence at all.
// The chat client exposes its RPC endpoint as a unix socket, which rules
// out everything else.
func Available() bool {
	switch runtime.GOOS {
	case "linux", "darwin":
		return true
	}
	return false
}

// socketCandidates lists possible socket paths in preference order. The
// client numbers its sockets discord-ipc-0 through discord-ipc-9 and
// sandboxed installs (flatpak, snap) nest them under the runtime dir.
func socketCandidates() []string {
	var roots []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR"} {
		if dir := os.Getenv(env); dir != "" {
			roots = append(roots,
				dir,
				filepath.Join(dir, "app", "com.discordapp.Discord"),
				filepath.Join(dir, "snap.discord"),
			)
		}
	}
	roots = append(roots, "/tmp")

	var candidates []string
	for _, root := range roots {
		for i := 0; i < 10; i++ {
			candidates = append(candidates, filepath.Join(root, fmt.Sprintf("discord-ipc-%d", i)))
		}
	}
	return candidates
}

// dialSocket connects to the first candidate socket that accepts.
func dialSocket() (net.Conn, error) {
	for _, path := range socketCandidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		conn, err := net.DialTimeout("unix", path, dialTimeout)
		if err != nil {
			continue
		}
		return conn, nil
	}
	return nil, ErrSocketNotFound
}

// Probe reports whether a live RPC socket is accepting connections, without
// performing a handshake.
func Probe() error {
	if !Available() {
		return fmt.Errorf("platform %s: %w", runtime.GOOS, ErrSocketNotFound)
	}
	conn, err := dialSocket()
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
