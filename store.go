package photobooth

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a share token or profile does not exist.
var ErrNotFound = errors.New("not found")

var timeNow = time.Now

// Event kinds recorded for the admin dashboard.
const (
	EventComposed = "composed"
	EventUploaded = "uploaded"
	EventDeleted  = "deleted"
	EventCleared  = "cleared"
)

// Store wraps a SQLite database holding share tokens, gallery events and
// event profiles. Images themselves live only in the content directory.
type Store struct {
	db *sql.DB
}

// ShareToken grants temporary public access to one stored image.
type ShareToken struct {
	Token     string
	Filename  string
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer valid at now.
func (t ShareToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS share_tokens (
    token TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_share_tokens_filename ON share_tokens(filename);
CREATE INDEX IF NOT EXISTS idx_share_tokens_expires ON share_tokens(expires_at);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    filename TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);

CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    event_date TEXT NOT NULL DEFAULT '',
    accent_color TEXT NOT NULL DEFAULT '',
    text_color TEXT NOT NULL DEFAULT '',
    bg_color TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`)
	return err
}

// CreateShareToken issues a new token for filename valid for ttl.
func (s *Store) CreateShareToken(filename string, ttl time.Duration) (ShareToken, error) {
	t := ShareToken{
		Token:     uuid.NewString(),
		Filename:  filename,
		ExpiresAt: timeNow().Add(ttl).UTC(),
	}
	_, err := s.db.Exec(`INSERT INTO share_tokens (token, filename, expires_at) VALUES (?, ?, ?)`,
		t.Token, t.Filename, t.ExpiresAt.UnixNano())
	if err != nil {
		return ShareToken{}, err
	}
	return t, nil
}

// GetShareToken looks up a token regardless of expiry.
func (s *Store) GetShareToken(token string) (ShareToken, error) {
	var filename string
	var expires int64
	err := s.db.QueryRow(`SELECT filename, expires_at FROM share_tokens WHERE token = ?`, token).
		Scan(&filename, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return ShareToken{}, ErrNotFound
	}
	if err != nil {
		return ShareToken{}, err
	}
	return ShareToken{Token: token, Filename: filename, ExpiresAt: time.Unix(0, expires).UTC()}, nil
}

// DeleteShareToken removes a single token.
func (s *Store) DeleteShareToken(token string) error {
	_, err := s.db.Exec(`DELETE FROM share_tokens WHERE token = ?`, token)
	return err
}

// DeleteShareTokensFor removes every token pointing at filename.
func (s *Store) DeleteShareTokensFor(filename string) error {
	_, err := s.db.Exec(`DELETE FROM share_tokens WHERE filename = ?`, filename)
	return err
}

// DeleteAllShareTokens removes every token.
func (s *Store) DeleteAllShareTokens() error {
	_, err := s.db.Exec(`DELETE FROM share_tokens`)
	return err
}

// DeleteExpiredShareTokens removes tokens that expired before now.
func (s *Store) DeleteExpiredShareTokens(now time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM share_tokens WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordEvent appends a gallery event.
func (s *Store) RecordEvent(kind, filename string) error {
	_, err := s.db.Exec(`INSERT INTO events (kind, filename, created_at) VALUES (?, ?, ?)`,
		kind, filename, timeNow().UnixNano())
	return err
}

// CountEvents returns the number of events per kind since the given time.
func (s *Store) CountEvents(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM events WHERE created_at >= ? GROUP BY kind`, since.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

const profileColumns = `id, name, title, event_date, accent_color, text_color, bg_color, message, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var active int
	var created, updated int64
	err := row.Scan(&p.ID, &p.Name, &p.Title, &p.Date, &p.AccentColor, &p.TextColor,
		&p.BackgroundColor, &p.Message, &active, &created, &updated)
	if err != nil {
		return Profile{}, err
	}
	p.Active = active != 0
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

// SaveProfile inserts p when it has no ID and updates the stored row
// otherwise. The active flag is left alone; use ActivateProfile.
func (s *Store) SaveProfile(p Profile) (Profile, error) {
	now := timeNow().UnixNano()
	if p.ID == "" {
		p.ID = uuid.NewString()
		_, err := s.db.Exec(`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			p.ID, p.Name, p.Title, p.Date, p.AccentColor, p.TextColor, p.BackgroundColor, p.Message, now, now)
		if err != nil {
			return Profile{}, err
		}
		return s.GetProfile(p.ID)
	}

	res, err := s.db.Exec(`UPDATE profiles SET name = ?, title = ?, event_date = ?, accent_color = ?, text_color = ?,
		bg_color = ?, message = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Title, p.Date, p.AccentColor, p.TextColor, p.BackgroundColor, p.Message, now, p.ID)
	if err != nil {
		return Profile{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Profile{}, err
	} else if n == 0 {
		return Profile{}, ErrNotFound
	}
	return s.GetProfile(p.ID)
}

// GetProfile looks up one profile by ID.
func (s *Store) GetProfile(id string) (Profile, error) {
	p, err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}

// ListProfiles returns every profile, newest first.
func (s *Store) ListProfiles() ([]Profile, error) {
	rows, err := s.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile. Deleting the active profile leaves no
// profile active.
func (s *Store) DeleteProfile(id string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActivateProfile makes id the only active profile and returns it.
func (s *Store) ActivateProfile(id string) (Profile, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Profile{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM profiles WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if _, err := tx.Exec(`UPDATE profiles SET active = CASE WHEN id = ? THEN 1 ELSE 0 END`, id); err != nil {
		return Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, err
	}
	return s.GetProfile(id)
}

// DeactivateProfiles clears the active flag everywhere, reverting the
// booth to the configured branding.
func (s *Store) DeactivateProfiles() error {
	_, err := s.db.Exec(`UPDATE profiles SET active = 0 WHERE active != 0`)
	return err
}

// ActiveProfile returns the active profile, or ErrNotFound when the booth
// uses the configured branding.
func (s *Store) ActiveProfile() (Profile, error) {
	p, err := scanProfile(s.db.QueryRow(`SELECT ` + profileColumns + ` FROM profiles WHERE active = 1 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}

// StartCleanupScheduler periodically purges expired share tokens. Returns a
// stop function.
func (s *Store) StartCleanupScheduler(interval time.Duration, onError func(error)) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := s.DeleteExpiredShareTokens(timeNow()); err != nil && onError != nil {
					onError(err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
