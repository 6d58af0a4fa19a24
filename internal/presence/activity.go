package presence

import (
	"time"

	"github.com/strlkr/lastfm-rp/internal/discord"
	"github.com/strlkr/lastfm-rp/internal/lastfm"
)

// fallbackArt is the asset key used when Last.fm has no album art.
const fallbackArt = "blank_art"

// listenButtonLabel is the label of the activity link button.
const listenButtonLabel = "Listen on Last.fm"

// BuildActivity turns a now-playing track into the Listening activity shown
// in Discord: title as details, "by <artist>" as state, album art with
// "on <album>" hover text, and elapsed time since startedAt.
func BuildActivity(t *lastfm.Track, startedAt time.Time, opts Options) *discord.Activity {
	art := t.Images.Largest()
	if art == "" {
		art = fallbackArt
	}

	assets := &discord.Assets{
		LargeImage: art,
		SmallImage: opts.SmallImage,
		SmallText:  opts.SmallText,
	}
	if t.Album != "" {
		assets.LargeText = "on " + t.Album
	}

	activity := &discord.Activity{
		Type:       discord.ActivityListening,
		Details:    t.Title,
		State:      "by " + t.Artist,
		Assets:     assets,
		Timestamps: &discord.Timestamps{Start: startedAt.UnixMilli()},
	}

	if opts.Buttons && t.URL != "" {
		activity.Buttons = []discord.Button{
			{Label: listenButtonLabel, URL: t.URL},
		}
	}

	return activity
}
