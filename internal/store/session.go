package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Stats are the counters recorded for a pointer session.
type Stats struct {
	Frames       int `json:"frames"`
	Clicks       int `json:"clicks"`
	DoubleClicks int `json:"double_clicks"`
	Drags        int `json:"drags"`
	Denied       int `json:"denied"`
	// ReadErrors counts frames the camera failed to deliver.
	ReadErrors int `json:"read_errors"`
	// DetectErrors counts frames the hand detector failed on.
	DetectErrors int `json:"detect_errors"`
}

// Session is one run of the frame loop.
type Session struct {
	ID            string     `json:"id"`
	Mode          string     `json:"mode"`
	CalibrationID string     `json:"calibration_id,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Stats
}

// SessionRepository journals pointer sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start records a new session and returns it.
func (r *SessionRepository) Start(mode, calibrationID string) (*Session, error) {
	sess := &Session{
		ID:            uuid.New().String(),
		Mode:          mode,
		CalibrationID: calibrationID,
		StartedAt:     time.Now(),
	}

	var calID any
	if calibrationID != "" {
		calID = calibrationID
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, mode, calibration_id, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Mode, calID, sess.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Finish stores the final counters and end time.
func (r *SessionRepository) Finish(id string, stats Stats) error {
	res, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, clicks = ?, double_clicks = ?, drags = ?, denied = ?,
		 read_errors = ?, detect_errors = ?
		 WHERE id = ?`,
		time.Now(), stats.Frames, stats.Clicks, stats.DoubleClicks, stats.Drags, stats.Denied,
		stats.ReadErrors, stats.DetectErrors, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	return scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

// List returns up to limit sessions, newest first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const sessionColumns = `id, mode, calibration_id, started_at, ended_at, frames, clicks, double_clicks, drags, denied,
	read_errors, detect_errors`

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var calID sql.NullString
	var ended sql.NullTime
	err := row.Scan(&s.ID, &s.Mode, &calID, &s.StartedAt, &ended,
		&s.Frames, &s.Clicks, &s.DoubleClicks, &s.Drags, &s.Denied, &s.ReadErrors, &s.DetectErrors)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.CalibrationID = calID.String
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}
