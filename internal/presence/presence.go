// Package presence mirrors playback state into a chat client's rich
// presence display. The Mirror tracks a single two-variant Presence
// value and funnels every transport interaction through one serial
// worker, so connects, reconnects and pushes never race.
package presence

import "watchcord/internal/models"

type State string

const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
)

// Presence is the current status value. It is a comparable struct so
// redundant updates can be suppressed with a plain equality check.
type Presence struct {
	State State           `json:"state"`
	Media models.MediaRef `json:"media"`
}

func Idle() Presence {
	return Presence{State: StateIdle}
}

func Watching(media models.MediaRef) Presence {
	return Presence{State: StateWatching, Media: media}
}
