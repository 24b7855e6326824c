package media

import (
	"context"

	"watchcord/internal/models"
)

// SessionSource lists active playback on a media server.
type SessionSource interface {
	Name() string
	Sessions(ctx context.Context) ([]models.PlaybackSession, error)
	TestConnection(ctx context.Context) error
}

// RealtimeSubscriber is implemented by sources that can push session
// snapshots over a persistent connection between polls. The returned
// channel closes when ctx is done.
type RealtimeSubscriber interface {
	Subscribe(ctx context.Context) (<-chan []models.PlaybackSession, error)
}
