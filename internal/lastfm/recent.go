package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	apiBaseURL = "https://ws.audioscrobbler.com/2.0/"
	userAgent  = "lastfm-rp/1.0 (https://github.com/strlkr/lastfm-rp)"

	// Minimum spacing between requests; the poll loop runs every couple of
	// seconds and Last.fm tolerates that, but retries must not burst.
	requestSpacing = time.Second

	// Retry configuration. Kept short so a retried poll finishes before the
	// next tick fires.
	maxRetries   = 2
	initialDelay = 500 * time.Millisecond
	maxDelay     = 2 * time.Second

	// Hash embedded in the URL of Last.fm's "no art" placeholder star.
	placeholderArtHash = "2a96cbd8b46e442fc41c2b86b821562f"
)

// APIError is an application-level error returned by the Last.fm API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lastfm api error %d: %s", e.Code, e.Message)
}

// Poller fetches the recent tracks of a single user.
type Poller struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	user        string
	mu          sync.Mutex
	lastRequest time.Time
}

// NewPoller creates a Poller for the given API key and username.
func NewPoller(apiKey, user string) *Poller {
	return &Poller{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    apiBaseURL,
		apiKey:     apiKey,
		user:       user,
	}
}

// RecentTracks fetches the user's most recent tracks, newest first. The
// in-progress track, when there is one, is included with NowPlaying set.
func (p *Poller) RecentTracks(ctx context.Context, limit int) ([]Track, error) {
	params := url.Values{}
	params.Set("method", "user.getrecenttracks")
	params.Set("user", p.user)
	params.Set("format", "json")
	params.Set("extended", "1")
	params.Set("api_key", p.apiKey)
	params.Set("limit", strconv.Itoa(limit))

	reqURL := fmt.Sprintf("%s?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.doRequestWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var result recentTracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.Error != 0 {
		return nil, &APIError{Code: result.Error, Message: result.Message}
	}

	tracks := make([]Track, 0, len(result.RecentTracks.Track))
	for i := range result.RecentTracks.Track {
		tracks = append(tracks, result.RecentTracks.Track[i].toTrack())
	}

	return tracks, nil
}

// NowPlaying returns the track currently marked as playing, or nil when the
// user is not listening to anything.
func (p *Poller) NowPlaying(ctx context.Context) (*Track, error) {
	tracks, err := p.RecentTracks(ctx, 1)
	if err != nil {
		return nil, err
	}

	for i := range tracks {
		if tracks[i].NowPlaying {
			return &tracks[i], nil
		}
	}

	return nil, nil //nolint:nilnil // nil track means nothing playing, not an error
}

// waitForSpacing keeps retries from bursting requests at the API.
func (p *Poller) waitForSpacing() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastRequest)
	if elapsed < requestSpacing {
		time.Sleep(requestSpacing - elapsed)
	}
	p.lastRequest = time.Now()
}

// doRequestWithRetry executes an HTTP request with exponential backoff retry.
// Retries on 5xx errors and network errors; 4xx responses are returned as-is
// so the Last.fm error payload can be decoded.
func (p *Poller) doRequestWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay = min(delay*2, maxDelay)
		}

		p.waitForSpacing()

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 500 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// Wire types. Last.fm's JSON keeps most scalars as strings and hides the
// now-playing flag in a "@attr" object on the track.

type rawImage struct {
	Size string `json:"size"`
	URL  string `json:"#text"`
}

type rawArtist struct {
	Name  string     `json:"name"`
	MBID  string     `json:"mbid"`
	URL   string     `json:"url"`
	Image []rawImage `json:"image"`
}

type rawAlbum struct {
	Name string `json:"#text"`
	MBID string `json:"mbid"`
}

type rawDate struct {
	UTS string `json:"uts"`
}

type rawTrack struct {
	Attr *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
	Name       string     `json:"name"`
	MBID       string     `json:"mbid"`
	URL        string     `json:"url"`
	Streamable string     `json:"streamable"`
	Artist     rawArtist  `json:"artist"`
	Album      rawAlbum   `json:"album"`
	Image      []rawImage `json:"image"`
	Date       *rawDate   `json:"date"`
}

type recentTracksResponse struct {
	RecentTracks struct {
		Track []rawTrack `json:"track"`
	} `json:"recenttracks"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func (r *rawTrack) toTrack() Track {
	t := Track{
		Artist:       r.Artist.Name,
		ArtistMBID:   r.Artist.MBID,
		ArtistURL:    r.Artist.URL,
		Title:        r.Name,
		Album:        r.Album.Name,
		MBID:         r.MBID,
		URL:          r.URL,
		Streamable:   parseAPIBool(r.Streamable),
		Images:       toImageSet(r.Image),
		ArtistImages: toImageSet(r.Artist.Image),
	}

	if r.Attr != nil {
		t.NowPlaying = r.Attr.NowPlaying == "true"
	}

	if r.Date != nil {
		if uts, err := strconv.ParseInt(r.Date.UTS, 10, 64); err == nil {
			t.ScrobbledAt = time.Unix(uts, 0).UTC()
		}
	}

	return t
}

// parseAPIBool reads Last.fm's stringly-typed booleans ("1"/"true").
func parseAPIBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true":
		return true
	default:
		return false
	}
}

// toImageSet maps the size-keyed image list, dropping placeholder art.
func toImageSet(images []rawImage) ImageSet {
	var set ImageSet

	for _, img := range images {
		if img.URL == "" || strings.Contains(img.URL, placeholderArtHash) {
			continue
		}
		switch img.Size {
		case "small":
			set.Small = img.URL
		case "medium":
			set.Medium = img.URL
		case "large":
			set.Large = img.URL
		case "extralarge":
			set.ExtraLarge = img.URL
		}
	}

	return set
}
