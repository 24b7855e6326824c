package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"watchcord/internal/httputil"
	"watchcord/internal/models"
)

// Client speaks the Emby-compatible HTTP API, which Jellyfin shares.
type Client struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

func NewClient(cfg models.ServerConfig) *Client {
	name := cfg.URL
	if u, err := url.Parse(cfg.URL); err == nil && u.Host != "" {
		name = u.Host
	}
	return &Client{
		name:   name,
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: httputil.NewClient(),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/System/Info/Public", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(c.addAuth(req))
	if err != nil {
		return err
	}
	defer httputil.DrainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media server returned status %d", resp.StatusCode)
	}
	return nil
}

// Sessions returns every session with an item playing; idle sessions
// (connected clients with nothing loaded) are dropped here.
func (c *Client) Sessions(ctx context.Context) ([]models.PlaybackSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/Sessions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(c.addAuth(req))
	if err != nil {
		return nil, err
	}
	defer httputil.DrainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, err
	}

	var raw []embySession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing sessions JSON: %w", err)
	}
	return parseSessions(raw), nil
}

func (c *Client) addAuth(req *http.Request) *http.Request {
	req.Header.Set("X-Emby-Token", c.apiKey)
	return req
}

type embySession struct {
	ID         string      `json:"Id"`
	UserID     string      `json:"UserId"`
	UserName   string      `json:"UserName"`
	Client     string      `json:"Client"`
	DeviceName string      `json:"DeviceName"`
	NowPlaying *nowPlaying `json:"NowPlayingItem"`
	PlayState  *playState  `json:"PlayState"`
}

type nowPlaying struct {
	ID            string `json:"Id"`
	Name          string `json:"Name"`
	Type          string `json:"Type"`
	SeriesID      string `json:"SeriesId"`
	SeriesName    string `json:"SeriesName"`
	SeasonNumber  int    `json:"ParentIndexNumber"`
	EpisodeNumber int    `json:"IndexNumber"`
	RunTimeTicks  int64  `json:"RunTimeTicks"`
}

type playState struct {
	PositionTicks int64 `json:"PositionTicks"`
	IsPaused      bool  `json:"IsPaused"`
}

func parseSessions(raw []embySession) []models.PlaybackSession {
	var sessions []models.PlaybackSession
	for _, s := range raw {
		if s.NowPlaying == nil {
			continue
		}
		ps := models.PlaybackSession{
			SessionID:  s.ID,
			UserID:     s.UserID,
			UserName:   s.UserName,
			Client:     s.Client,
			DeviceName: s.DeviceName,
			State:      models.SessionStatePlaying,
			Media: models.MediaRef{
				ItemID:        s.NowPlaying.ID,
				Title:         s.NowPlaying.Name,
				MediaType:     embyMediaType(s.NowPlaying.Type),
				SeriesID:      s.NowPlaying.SeriesID,
				SeriesTitle:   s.NowPlaying.SeriesName,
				SeasonNumber:  s.NowPlaying.SeasonNumber,
				EpisodeNumber: s.NowPlaying.EpisodeNumber,
			},
			DurationMs: ticksToMs(s.NowPlaying.RunTimeTicks),
		}
		if s.PlayState != nil {
			ps.PositionMs = ticksToMs(s.PlayState.PositionTicks)
			if s.PlayState.IsPaused {
				ps.State = models.SessionStatePaused
			}
		}
		sessions = append(sessions, ps)
	}
	return sessions
}

// Server timestamps are .NET ticks, 100ns units.
func ticksToMs(ticks int64) int64 {
	return ticks / 10000
}

func embyMediaType(t string) models.MediaType {
	switch t {
	case "Movie", "MusicVideo", "Video":
		return models.MediaTypeMovie
	case "Episode":
		return models.MediaTypeEpisode
	case "Audio":
		return models.MediaTypeMusic
	case "TvChannel":
		return models.MediaTypeLiveTV
	default:
		return models.MediaTypeOther
	}
}
