package state

import (
	"database/sql"
	"errors"
	"time"

	"github.com/strlkr/lastfm-rp/internal/db"
)

// NowPlaying is the last published presence snapshot. It lets a restarted
// daemon keep the original elapsed-time timestamp instead of resetting it.
type NowPlaying struct {
	Artist    string
	Title     string
	Album     string
	URL       string
	ArtURL    string
	StartedAt time.Time
	UpdatedAt time.Time
}

// GetNowPlaying returns the stored snapshot, or nil if none was saved.
func (m *Manager) GetNowPlaying() (*NowPlaying, error) {
	var np NowPlaying
	var url, artURL sql.NullString
	var startedAt, updatedAt int64

	err := m.db.QueryRow(`
		SELECT artist, title, album, url, art_url, started_at, updated_at
		FROM now_playing WHERE id = 1
	`).Scan(&np.Artist, &np.Title, &np.Album, &url, &artURL, &startedAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil snapshot means nothing was playing
	}
	if err != nil {
		return nil, err
	}

	np.URL = db.NullStringValue(url)
	np.ArtURL = db.NullStringValue(artURL)
	np.StartedAt = time.Unix(startedAt, 0)
	np.UpdatedAt = time.Unix(updatedAt, 0)

	return &np, nil
}

// SaveNowPlaying stores the current snapshot, replacing any previous one.
func (m *Manager) SaveNowPlaying(np NowPlaying) error {
	return db.WithTx(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM now_playing WHERE id = 1`); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO now_playing (id, artist, title, album, url, art_url, started_at, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		`, np.Artist, np.Title, np.Album, np.URL, np.ArtURL, np.StartedAt.Unix(), time.Now().Unix())
		return err
	})
}

// ClearNowPlaying removes the snapshot once playback stops.
func (m *Manager) ClearNowPlaying() error {
	_, err := m.db.Exec(`DELETE FROM now_playing WHERE id = 1`)
	return err
}
