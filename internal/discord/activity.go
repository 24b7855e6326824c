package discord

import "watchcord/internal/httputil"

// Activity is the rich presence payload shown on the user's profile.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

const maxActivityText = 128

// sanitized clamps text fields to the limits the RPC server enforces:
// at most 128 characters, and non-empty strings must be at least two
// characters or the whole activity is rejected.
func (a Activity) sanitized() Activity {
	a.Details = clampText(a.Details)
	a.State = clampText(a.State)
	if a.Assets != nil {
		assets := *a.Assets
		assets.LargeText = clampText(assets.LargeText)
		assets.SmallText = clampText(assets.SmallText)
		a.Assets = &assets
	}
	return a
}

func clampText(s string) string {
	s = httputil.TruncateRunes(s, maxActivityText)
	if len([]rune(s)) == 1 {
		// Single-character titles exist; pad with a zero-width space
		// to satisfy the two-character minimum.
		s += "​"
	}
	return s
}
