package media

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"watchcord/internal/models"
)

type wsEnvelope struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

// Subscribe opens the server's notification websocket and emits a full
// session snapshot whenever the server reports playback changes. The
// channel closes when ctx is canceled.
func (c *Client) Subscribe(ctx context.Context) (<-chan []models.PlaybackSession, error) {
	ch := make(chan []models.PlaybackSession, 16)
	go c.wsLoop(ctx, ch)
	return ch, nil
}

func (c *Client) wsLoop(ctx context.Context, ch chan<- []models.PlaybackSession) {
	defer close(ch)
	backoff := time.Second

	for {
		err := c.wsConnect(ctx, ch)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("media ws %s: %v", c.name, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = min(backoff*2, 30*time.Second)
		}
	}
}

func (c *Client) wsConnect(ctx context.Context, ch chan<- []models.PlaybackSession) error {
	wsURL := strings.Replace(c.url, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/socket?api_key=" + url.QueryEscape(c.apiKey) + "&deviceId=watchcord"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Ask the server to push session state; "interval,timeout" in ms.
	if err := conn.WriteJSON(wsEnvelope{MessageType: "SessionsStart", Data: json.RawMessage(`"0,1500"`)}); err != nil {
		return err
	}

	// Ping goroutine. Closing the conn on cancel unblocks the read
	// loop below.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(
					websocket.PingMessage, nil,
					time.Now().Add(5*time.Second),
				); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}
		switch env.MessageType {
		case "Sessions":
			var raw []embySession
			if err := json.Unmarshal(env.Data, &raw); err != nil {
				continue
			}
			select {
			case ch <- parseSessions(raw):
			case <-ctx.Done():
				return ctx.Err()
			}
		case "ForceKeepAlive":
			if err := conn.WriteJSON(wsEnvelope{MessageType: "KeepAlive"}); err != nil {
				return err
			}
		}
	}
}
