package state

import (
	"path/filepath"
	"testing"
	"time"
)

// openTestManager opens a Manager backed by a file in a temp dir.
func openTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := OpenPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenPath() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })

	return m
}

func TestSchemaVersion(t *testing.T) {
	m := openTestManager(t)

	var version int
	if err := m.DB().QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("query schema_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestLastfmSessionRoundTrip(t *testing.T) {
	m := openTestManager(t)

	// No session stored yet
	session, err := m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession() error = %v", err)
	}
	if session != nil {
		t.Fatal("expected nil session before linking")
	}

	if err := m.SaveLastfmSession("someone", "key-123"); err != nil {
		t.Fatalf("SaveLastfmSession() error = %v", err)
	}

	session, err = m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession() error = %v", err)
	}
	if session == nil {
		t.Fatal("expected session after linking")
	}
	if session.Username != "someone" {
		t.Errorf("Username = %q, want %q", session.Username, "someone")
	}
	if session.SessionKey != "key-123" {
		t.Errorf("SessionKey = %q, want %q", session.SessionKey, "key-123")
	}
	if session.LinkedAt.IsZero() {
		t.Error("LinkedAt should be set")
	}

	// Re-linking replaces the single row
	if err := m.SaveLastfmSession("other", "key-456"); err != nil {
		t.Fatalf("SaveLastfmSession() error = %v", err)
	}
	session, err = m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession() error = %v", err)
	}
	if session.Username != "other" || session.SessionKey != "key-456" {
		t.Errorf("session = %+v, want replaced values", session)
	}

	if err := m.DeleteLastfmSession(); err != nil {
		t.Fatalf("DeleteLastfmSession() error = %v", err)
	}
	session, err = m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession() error = %v", err)
	}
	if session != nil {
		t.Error("expected nil session after unlink")
	}
}

func TestNowPlayingRoundTrip(t *testing.T) {
	m := openTestManager(t)

	np, err := m.GetNowPlaying()
	if err != nil {
		t.Fatalf("GetNowPlaying() error = %v", err)
	}
	if np != nil {
		t.Fatal("expected nil snapshot initially")
	}

	startedAt := time.Now().Add(-90 * time.Second).Truncate(time.Second)
	saved := NowPlaying{
		Artist:    "Radiohead",
		Title:     "Paranoid Android",
		Album:     "OK Computer",
		URL:       "https://www.last.fm/music/Radiohead/_/Paranoid+Android",
		ArtURL:    "https://img.example/300x300.jpg",
		StartedAt: startedAt,
	}
	if err := m.SaveNowPlaying(saved); err != nil {
		t.Fatalf("SaveNowPlaying() error = %v", err)
	}

	np, err = m.GetNowPlaying()
	if err != nil {
		t.Fatalf("GetNowPlaying() error = %v", err)
	}
	if np == nil {
		t.Fatal("expected snapshot after save")
	}
	if np.Artist != saved.Artist || np.Title != saved.Title || np.Album != saved.Album {
		t.Errorf("snapshot = %+v, want %+v", np, saved)
	}
	if !np.StartedAt.Equal(startedAt) {
		t.Errorf("StartedAt = %v, want %v", np.StartedAt, startedAt)
	}
	if np.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set on save")
	}

	// Saving a new track replaces the snapshot
	saved.Title = "Airbag"
	if err := m.SaveNowPlaying(saved); err != nil {
		t.Fatalf("SaveNowPlaying() error = %v", err)
	}
	np, err = m.GetNowPlaying()
	if err != nil {
		t.Fatalf("GetNowPlaying() error = %v", err)
	}
	if np.Title != "Airbag" {
		t.Errorf("Title = %q, want %q", np.Title, "Airbag")
	}

	if err := m.ClearNowPlaying(); err != nil {
		t.Fatalf("ClearNowPlaying() error = %v", err)
	}
	np, err = m.GetNowPlaying()
	if err != nil {
		t.Fatalf("GetNowPlaying() error = %v", err)
	}
	if np != nil {
		t.Error("expected nil snapshot after clear")
	}
}
