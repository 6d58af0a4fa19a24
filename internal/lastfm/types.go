package lastfm

import "time"

// ImageSet holds the album or artist art URLs by size. Entries are empty when
// Last.fm returned no art or only its placeholder image.
type ImageSet struct {
	Small      string
	Medium     string
	Large      string
	ExtraLarge string
}

// Largest returns the biggest available image URL, or "" if none.
func (s ImageSet) Largest() string {
	for _, url := range []string{s.ExtraLarge, s.Large, s.Medium, s.Small} {
		if url != "" {
			return url
		}
	}
	return ""
}

// IsEmpty returns true when no image of any size is present.
func (s ImageSet) IsEmpty() bool {
	return s.Largest() == ""
}

// Track is a single entry from user.getrecenttracks.
type Track struct {
	Artist     string
	ArtistMBID string
	ArtistURL  string

	Title string
	Album string
	MBID  string
	URL   string

	NowPlaying bool
	Streamable bool

	// ScrobbledAt is zero for the in-progress track.
	ScrobbledAt time.Time

	Images       ImageSet
	ArtistImages ImageSet
}

// Same reports whether two tracks describe the same song. MBIDs win when both
// sides have one; otherwise artist, title and album are compared.
func (t *Track) Same(other *Track) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.MBID != "" && other.MBID != "" {
		return t.MBID == other.MBID
	}
	return t.Artist == other.Artist && t.Title == other.Title && t.Album == other.Album
}
