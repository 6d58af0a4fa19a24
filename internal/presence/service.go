// Package presence runs the poll/update loop: it watches the Last.fm account
// and mirrors its now-playing track into the Discord rich presence.
package presence

import (
	"context"
	"time"

	"github.com/strlkr/lastfm-rp/internal/discord"
	"github.com/strlkr/lastfm-rp/internal/lastfm"
	"github.com/strlkr/lastfm-rp/internal/log"
	"github.com/strlkr/lastfm-rp/internal/notify"
	"github.com/strlkr/lastfm-rp/internal/state"
)

const (
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = time.Minute

	// A stored snapshot older than this is ignored on startup; the play it
	// described has ended even if the same track shows up again.
	snapshotMaxAge = 10 * time.Minute
)

// Poller fetches the currently playing track, nil when nothing plays.
type Poller interface {
	NowPlaying(ctx context.Context) (*lastfm.Track, error)
}

// Presence is the Discord connection the service publishes to.
type Presence interface {
	Connect() error
	Connected() bool
	SetActivity(a *discord.Activity) error
	ClearActivity() error
	Close() error
}

// Store persists the now-playing snapshot between runs.
type Store interface {
	GetNowPlaying() (*state.NowPlaying, error)
	SaveNowPlaying(np state.NowPlaying) error
	ClearNowPlaying() error
}

// Options control update timing and activity contents.
type Options struct {
	PollInterval    time.Duration
	RefreshInterval time.Duration
	SmallImage      string
	SmallText       string
	Buttons         bool
	Notifications   bool
}

// Service drives the poll/update loop.
type Service struct {
	poller   Poller
	presence Presence
	store    Store           // optional
	notifier notify.Notifier // optional
	opts     Options
	log      log.Logger

	current   *lastfm.Track
	startedAt time.Time
	lastPush  time.Time
	dirty     bool // current track changed since the last push
	cleared   bool // presence is known to be cleared
	notifyID  uint32

	// snapshot restored from the store, consumed by the first poll
	restored *state.NowPlaying

	reconnectDelay time.Duration
	nextReconnect  time.Time
}

// Config wires the service's collaborators.
type Config struct {
	Poller   Poller
	Presence Presence
	Store    Store
	Notifier notify.Notifier
	Options  Options
	Logger   log.Logger
}

func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}

	return &Service{
		poller:         cfg.Poller,
		presence:       cfg.Presence,
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		opts:           cfg.Options,
		log:            logger,
		reconnectDelay: reconnectInitialDelay,
	}
}

// Run polls until ctx is canceled. The initial Discord connection is retried
// with backoff; once the loop is running, poll and push failures are logged
// and survived.
func (s *Service) Run(ctx context.Context) error {
	s.restoreSnapshot()

	if err := s.connect(ctx); err != nil {
		return err
	}
	defer s.shutdown()

	s.log.Info("presence loop started",
		"poll_interval", s.opts.PollInterval,
		"refresh_interval", s.opts.RefreshInterval)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.step(ctx, time.Now())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// step runs one iteration: poll, update internal state, push when needed.
func (s *Service) step(ctx context.Context, now time.Time) {
	track, err := s.poller.NowPlaying(ctx)
	if err != nil {
		s.log.Warn("lastfm poll failed", "error", err)
	} else {
		s.apply(track, now)
	}

	if !s.ensureConnected(now) {
		return
	}

	if s.needsPush(now) {
		s.push(now)
	}
}

// apply folds a poll result into the service state.
func (s *Service) apply(track *lastfm.Track, now time.Time) {
	defer func() { s.restored = nil }()

	if track == nil {
		if s.current != nil {
			s.log.Info("playback stopped", "artist", s.current.Artist, "title", s.current.Title)
			s.current = nil
			s.dirty = true
			if s.store != nil {
				if err := s.store.ClearNowPlaying(); err != nil {
					s.log.Warn("clear snapshot failed", "error", err)
				}
			}
		}
		return
	}

	if s.current.Same(track) {
		// Same song; keep the original start time but refresh metadata
		// (art sometimes fills in a poll or two late).
		s.current = track
		return
	}

	startedAt := now
	if s.restored != nil && s.restoredMatches(track) {
		startedAt = s.restored.StartedAt
	}

	s.log.Info("track changed", "artist", track.Artist, "title", track.Title, "album", track.Album)

	s.current = track
	s.startedAt = startedAt
	s.dirty = true

	s.saveSnapshot(track, startedAt)
	s.notifyTrackChange(track)
}

// needsPush reports whether the presence should be pushed now: either the
// track changed, or the periodic refresh is due while something plays.
func (s *Service) needsPush(now time.Time) bool {
	if s.dirty {
		return true
	}
	if s.current == nil {
		return false
	}
	return now.Sub(s.lastPush) >= s.opts.RefreshInterval
}

// push publishes the current state to Discord.
func (s *Service) push(now time.Time) {
	var err error
	if s.current == nil {
		if s.cleared {
			s.dirty = false
			return
		}
		s.log.Debug("clearing activity")
		err = s.presence.ClearActivity()
		if err == nil {
			s.cleared = true
		}
	} else {
		activity := BuildActivity(s.current, s.startedAt, s.opts)
		s.log.Debug("updating activity", "details", activity.Details, "state", activity.State)
		err = s.presence.SetActivity(activity)
		if err == nil {
			s.cleared = false
		}
	}

	if err != nil {
		s.log.Warn("discord push failed", "error", err)
		return
	}

	s.lastPush = now
	s.dirty = false
}

// ensureConnected reconnects with exponential backoff after a dropped
// connection. Returns true when the connection is usable.
func (s *Service) ensureConnected(now time.Time) bool {
	if s.presence.Connected() {
		return true
	}

	if now.Before(s.nextReconnect) {
		return false
	}

	if err := s.presence.Connect(); err != nil {
		s.log.Warn("discord reconnect failed", "error", err, "retry_in", s.reconnectDelay)
		s.nextReconnect = now.Add(s.reconnectDelay)
		s.reconnectDelay = min(s.reconnectDelay*2, reconnectMaxDelay)
		return false
	}

	s.log.Info("reconnected to discord")
	s.reconnectDelay = reconnectInitialDelay
	s.nextReconnect = time.Time{}
	// The fresh connection has no activity; force a push.
	if s.current != nil {
		s.dirty = true
	}
	s.cleared = true
	return true
}

// connect establishes the initial Discord connection, retrying with backoff
// until ctx is canceled. Discord may simply not be running yet at login.
func (s *Service) connect(ctx context.Context) error {
	delay := reconnectInitialDelay

	for {
		err := s.presence.Connect()
		if err == nil {
			s.log.Info("connected to discord")
			return nil
		}

		s.log.Warn("discord connect failed", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

// shutdown clears the presence and closes the connection.
func (s *Service) shutdown() {
	if s.presence.Connected() {
		if err := s.presence.ClearActivity(); err != nil {
			s.log.Debug("clear on shutdown failed", "error", err)
		}
	}
	if err := s.presence.Close(); err != nil {
		s.log.Debug("close discord failed", "error", err)
	}
	s.log.Info("presence loop stopped")
}

// restoreSnapshot loads the persisted now-playing snapshot so a restart can
// keep the original elapsed-time timestamp.
func (s *Service) restoreSnapshot() {
	if s.store == nil {
		return
	}

	np, err := s.store.GetNowPlaying()
	if err != nil {
		s.log.Warn("restore snapshot failed", "error", err)
		return
	}
	if np == nil || time.Since(np.UpdatedAt) > snapshotMaxAge {
		return
	}

	s.restored = np
	s.log.Debug("restored snapshot", "artist", np.Artist, "title", np.Title)
}

func (s *Service) restoredMatches(track *lastfm.Track) bool {
	return s.restored.Artist == track.Artist &&
		s.restored.Title == track.Title &&
		s.restored.Album == track.Album
}

func (s *Service) saveSnapshot(track *lastfm.Track, startedAt time.Time) {
	if s.store == nil {
		return
	}

	err := s.store.SaveNowPlaying(state.NowPlaying{
		Artist:    track.Artist,
		Title:     track.Title,
		Album:     track.Album,
		URL:       track.URL,
		ArtURL:    track.Images.Largest(),
		StartedAt: startedAt,
	})
	if err != nil {
		s.log.Warn("save snapshot failed", "error", err)
	}
}

func (s *Service) notifyTrackChange(track *lastfm.Track) {
	if s.notifier == nil || !s.opts.Notifications {
		return
	}

	id, err := s.notifier.Notify(notify.Notification{
		Title:      track.Title,
		Body:       "by " + track.Artist,
		Timeout:    5000,
		ReplacesID: s.notifyID,
		Urgency:    notify.UrgencyLow,
	})
	if err != nil {
		s.log.Debug("notification failed", "error", err)
		return
	}
	s.notifyID = id
}
