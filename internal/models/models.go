package models

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
	MediaTypeLiveTV  MediaType = "livetv"
	MediaTypeMusic   MediaType = "track"
	MediaTypeOther   MediaType = "other"
)

type SessionState string

const (
	SessionStatePlaying   SessionState = "playing"
	SessionStatePaused    SessionState = "paused"
	SessionStateBuffering SessionState = "buffering"
)

// MediaRef identifies a playable item together with the series it belongs
// to, when it has one. Movies and other standalone items leave the series
// fields empty. All fields are comparable so refs can be checked with ==.
type MediaRef struct {
	ItemID        string    `json:"item_id"`
	Title         string    `json:"title"`
	MediaType     MediaType `json:"media_type"`
	SeriesID      string    `json:"series_id,omitempty"`
	SeriesTitle   string    `json:"series_title,omitempty"`
	SeasonNumber  int       `json:"season_number,omitempty"`
	EpisodeNumber int       `json:"episode_number,omitempty"`
}

// IsEpisode reports whether the ref belongs to a series that episode
// progress can be tracked against.
func (r MediaRef) IsEpisode() bool {
	return r.MediaType == MediaTypeEpisode && r.SeriesID != ""
}

// PlaybackSession is one active playback reported by the media server.
type PlaybackSession struct {
	SessionID  string       `json:"session_id"`
	UserID     string       `json:"user_id"`
	UserName   string       `json:"user_name"`
	Client     string       `json:"client,omitempty"`
	DeviceName string       `json:"device_name,omitempty"`
	State      SessionState `json:"state"`
	Media      MediaRef     `json:"media"`
	PositionMs int64        `json:"position_ms"`
	DurationMs int64        `json:"duration_ms"`
}

// SeriesProgress records the most recently watched episode of a series.
type SeriesProgress struct {
	SeriesID      string    `json:"series_id"`
	SeriesTitle   string    `json:"series_title"`
	SeasonNumber  int       `json:"season_number"`
	EpisodeNumber int       `json:"episode_number"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ServerConfig is the connection configuration for the media server that
// playback is watched on.
type ServerConfig struct {
	URL      string `json:"url"`
	APIKey   string `json:"-"`
	Username string `json:"username"`
}

func (c *ServerConfig) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	return nil
}
