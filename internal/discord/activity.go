package discord

// ActivityListening renders as "Listening to ..." in the Discord client.
const ActivityListening = 2

// Activity describes a rich-presence activity.
type Activity struct {
	Type       int         `json:"type"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// Assets holds the activity artwork keys or URLs.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Timestamps are Unix milliseconds; a start time makes the client show
// elapsed time.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Button is a clickable link under the activity. Discord allows at most two.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
