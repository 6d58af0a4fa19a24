package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placeholderURL = "https://lastfm.freetls.fastly.net/i/u/300x300/2a96cbd8b46e442fc41c2b86b821562f.png"

const nowPlayingBody = `{
  "recenttracks": {
    "track": [
      {
        "@attr": {"nowplaying": "true"},
        "name": "Paranoid Android",
        "mbid": "7af1a5a2-mbid",
        "url": "https://www.last.fm/music/Radiohead/_/Paranoid+Android",
        "streamable": "0",
        "artist": {
          "name": "Radiohead",
          "mbid": "a74b1b7f-mbid",
          "url": "https://www.last.fm/music/Radiohead",
          "image": [
            {"size": "small", "#text": "` + placeholderURL + `"}
          ]
        },
        "album": {"#text": "OK Computer", "mbid": "b1392450-mbid"},
        "image": [
          {"size": "small", "#text": "https://img.example/34s.jpg"},
          {"size": "medium", "#text": "https://img.example/64s.jpg"},
          {"size": "large", "#text": "https://img.example/174s.jpg"},
          {"size": "extralarge", "#text": "https://img.example/300x300.jpg"}
        ]
      },
      {
        "name": "Airbag",
        "mbid": "",
        "url": "https://www.last.fm/music/Radiohead/_/Airbag",
        "streamable": "0",
        "artist": {"name": "Radiohead", "mbid": "", "url": "https://www.last.fm/music/Radiohead", "image": []},
        "album": {"#text": "OK Computer", "mbid": ""},
        "image": [],
        "date": {"uts": "1700000000", "#text": "14 Nov 2023, 22:13"}
      }
    ]
  }
}`

func newTestPoller(t *testing.T, handler http.HandlerFunc) *Poller {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewPoller("test-key", "test-user")
	p.baseURL = srv.URL
	return p
}

func TestRecentTracks(t *testing.T) {
	var gotQuery map[string]string
	p := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, nowPlayingBody)
	})

	tracks, err := p.RecentTracks(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, "user.getrecenttracks", gotQuery["method"])
	assert.Equal(t, "test-user", gotQuery["user"])
	assert.Equal(t, "test-key", gotQuery["api_key"])
	assert.Equal(t, "1", gotQuery["extended"])
	assert.Equal(t, "json", gotQuery["format"])
	assert.Equal(t, "1", gotQuery["limit"])

	playing := tracks[0]
	assert.True(t, playing.NowPlaying)
	assert.Equal(t, "Paranoid Android", playing.Title)
	assert.Equal(t, "Radiohead", playing.Artist)
	assert.Equal(t, "OK Computer", playing.Album)
	assert.Equal(t, "https://img.example/300x300.jpg", playing.Images.ExtraLarge)
	assert.True(t, playing.ScrobbledAt.IsZero())

	// Artist art was the placeholder star and must be dropped.
	assert.True(t, playing.ArtistImages.IsEmpty())

	scrobbled := tracks[1]
	assert.False(t, scrobbled.NowPlaying)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), scrobbled.ScrobbledAt)
	assert.True(t, scrobbled.Images.IsEmpty())
}

func TestNowPlaying(t *testing.T) {
	p := newTestPoller(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, nowPlayingBody)
	})

	track, err := p.NowPlaying(context.Background())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "Paranoid Android", track.Title)
}

func TestNowPlaying_NothingPlaying(t *testing.T) {
	p := newTestPoller(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"recenttracks": {"track": [
			{"name": "Airbag", "url": "", "streamable": "0",
			 "artist": {"name": "Radiohead"}, "album": {"#text": "OK Computer"},
			 "image": [], "date": {"uts": "1700000000"}}
		]}}`)
	})

	track, err := p.NowPlaying(context.Background())
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestRecentTracks_APIError(t *testing.T) {
	p := newTestPoller(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": 10, "message": "Invalid API key"}`)
	})

	_, err := p.RecentTracks(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10, apiErr.Code)
	assert.Equal(t, "Invalid API key", apiErr.Message)
}

func TestRecentTracks_RetriesServerErrors(t *testing.T) {
	var calls int
	p := newTestPoller(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, nowPlayingBody)
	})

	tracks, err := p.RecentTracks(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, tracks, 2)
}

func TestParseAPIBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"0", false},
		{"false", false},
		{"", false},
		{"yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseAPIBool(tt.input))
		})
	}
}

func TestToImageSet(t *testing.T) {
	images := []rawImage{
		{Size: "small", URL: "https://img.example/s.jpg"},
		{Size: "large", URL: placeholderURL},
		{Size: "extralarge", URL: ""},
		{Size: "mega", URL: "https://img.example/mega.jpg"},
	}

	set := toImageSet(images)
	assert.Equal(t, "https://img.example/s.jpg", set.Small)
	assert.Empty(t, set.Large, "placeholder art must be dropped")
	assert.Empty(t, set.ExtraLarge)
	assert.Equal(t, "https://img.example/s.jpg", set.Largest())
}

func TestImageSetLargest(t *testing.T) {
	set := ImageSet{Small: "s", Medium: "m"}
	assert.Equal(t, "m", set.Largest())

	set.ExtraLarge = "xl"
	assert.Equal(t, "xl", set.Largest())

	assert.Empty(t, ImageSet{}.Largest())
	assert.True(t, ImageSet{}.IsEmpty())
}

func TestTrackSame(t *testing.T) {
	a := &Track{Artist: "Radiohead", Title: "Airbag", Album: "OK Computer"}
	b := &Track{Artist: "Radiohead", Title: "Airbag", Album: "OK Computer"}
	assert.True(t, a.Same(b))

	// Different album counts as a different play target.
	c := &Track{Artist: "Radiohead", Title: "Airbag", Album: "OKNOTOK"}
	assert.False(t, a.Same(c))

	// MBIDs win when both sides carry one.
	d := &Track{Artist: "Radiohead", Title: "Airbag (remaster)", Album: "OKNOTOK", MBID: "x"}
	e := &Track{Artist: "Radiohead", Title: "Airbag", Album: "OK Computer", MBID: "x"}
	assert.True(t, d.Same(e))

	var nilTrack *Track
	assert.False(t, a.Same(nilTrack))
	assert.True(t, nilTrack.Same(nil))
}
