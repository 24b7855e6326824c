package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// handleStatusWS streams presence status changes to the admin UI. The
// initial message is the current status so clients never render stale
// state while waiting for the first transition.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		writeError(w, http.StatusServiceUnavailable, "presence mirror not configured")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || s.corsOrigin == "*" {
				return true
			}
			return origin == s.corsOrigin
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.mirror.Subscribe()
	defer s.mirror.Unsubscribe(ch)

	// Read pump. Clients never send data, but reading surfaces close
	// frames and dead connections.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v)
	}
	if err := write(s.mirror.Current()); err != nil {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case st, ok := <-ch:
			if !ok {
				return
			}
			if err := write(st); err != nil {
				log.Printf("status ws write: %v", err)
				return
			}
		}
	}
}
