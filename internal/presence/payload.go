package presence

import (
	"fmt"

	"watchcord/internal/discord"
	"watchcord/internal/models"
)

// Art asset uploaded with the Discord application.
const defaultLargeImage = "watchcord"

const (
	idleDetails = "Just Chilling"
	idleState   = "About to start watching"
)

// EpisodeSource resolves the latest tracked episode number for a series.
// A lookup miss is reported as an error and treated as "unknown".
type EpisodeSource interface {
	CurrentEpisode(seriesID string) (int, error)
}

// BuildActivity renders a Presence into the transport payload. With
// showTitles off the payload never identifies what is playing. With it
// on, the details line carries the series (or item) title and the state
// line carries the episode number when the lookup resolves one.
func BuildActivity(p Presence, showTitles bool, episodes EpisodeSource) discord.Activity {
	act := discord.Activity{
		Assets: &discord.Assets{
			LargeImage: defaultLargeImage,
			LargeText:  "Watchcord",
		},
	}

	if p.State != StateWatching {
		act.Details = idleDetails
		act.State = idleState
		return act
	}

	if !showTitles {
		act.Details = genericDetails(p.Media.MediaType)
		return act
	}

	title := p.Media.SeriesTitle
	if title == "" {
		title = p.Media.Title
	}
	if title == "" {
		act.Details = genericDetails(p.Media.MediaType)
		return act
	}
	act.Details = "Watching " + title

	if p.Media.SeriesID != "" && episodes != nil {
		if n, err := episodes.CurrentEpisode(p.Media.SeriesID); err == nil && n > 0 {
			act.State = fmt.Sprintf("Episode %d", n)
		}
	}
	return act
}

func genericDetails(t models.MediaType) string {
	switch t {
	case models.MediaTypeMovie:
		return "Watching a movie"
	case models.MediaTypeEpisode:
		return "Watching a show"
	case models.MediaTypeLiveTV:
		return "Watching live TV"
	case models.MediaTypeMusic:
		return "Listening to music"
	default:
		return "Watching something"
	}
}
