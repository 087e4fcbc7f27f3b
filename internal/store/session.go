package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one stretch of play with its final (or latest) totals.
type Session struct {
	ID              string     `json:"id" yaml:"id"`
	Mode            string     `json:"mode" yaml:"mode"`
	StartedAt       time.Time  `json:"started_at" yaml:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Score           int        `json:"score" yaml:"score"`
	TotalChallenges int        `json:"total_challenges" yaml:"total_challenges"`
	CorrectHits     int        `json:"correct_hits" yaml:"correct_hits"`
	MaxStreak       int        `json:"max_streak" yaml:"max_streak"`
	Level           int        `json:"level" yaml:"level"`
	PerfectHits     int        `json:"perfect_hits" yaml:"perfect_hits"`
}

// Accuracy is the share of challenges hit, in percent.
func (s Session) Accuracy() float64 {
	if s.TotalChallenges == 0 {
		return 0
	}
	return float64(s.CorrectHits) / float64(s.TotalChallenges) * 100
}

// Duration is how long the session lasted, or zero while it is open.
func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, mode, started_at, ended_at, score, total_challenges,
	correct_hits, max_streak, level, perfect_hits`

// Create inserts a new session. An empty ID is filled with a new UUID and a
// zero StartedAt with the current time.
func (r *SessionRepository) Create(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if s.Level == 0 {
		s.Level = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Mode, s.StartedAt, nullTime(s.EndedAt), s.Score, s.TotalChallenges,
		s.CorrectHits, s.MaxStreak, s.Level, s.PerfectHits,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent sessions first. A limit of 0 or less returns
// every session.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Update writes the totals and end time of an existing session.
func (r *SessionRepository) Update(s *Session) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET mode = ?, ended_at = ?, score = ?, total_challenges = ?,
		 correct_hits = ?, max_streak = ?, level = ?, perfect_hits = ?
		 WHERE id = ?`,
		s.Mode, nullTime(s.EndedAt), s.Score, s.TotalChallenges,
		s.CorrectHits, s.MaxStreak, s.Level, s.PerfectHits, s.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Delete removes a session and its attempts.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Best returns the highest scoring session, or ErrNotFound when there are none.
func (r *SessionRepository) Best() (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT ` + sessionColumns + ` FROM sessions ORDER BY score DESC, started_at ASC LIMIT 1`,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime
	err := row.Scan(&s.ID, &s.Mode, &s.StartedAt, &ended, &s.Score, &s.TotalChallenges,
		&s.CorrectHits, &s.MaxStreak, &s.Level, &s.PerfectHits)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOne(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
