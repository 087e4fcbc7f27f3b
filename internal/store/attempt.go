package store

import (
	"database/sql"
	"time"
)

// Outcome values stored with an attempt.
const (
	OutcomePerfect = "perfect"
	OutcomePoints  = "points"
	OutcomeLevelUp = "level_up"
	OutcomeMissed  = "missed"
)

// Attempt is one finished challenge.
type Attempt struct {
	ID        int64     `json:"id" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Note      string    `json:"note" yaml:"note"`
	Hand      string    `json:"hand" yaml:"hand"`
	FingerID  int       `json:"finger_id" yaml:"finger_id"`
	Level     int       `json:"level" yaml:"level"`
	TimeLimit int64     `json:"time_limit_ms" yaml:"time_limit_ms"`
	Elapsed   int64     `json:"elapsed_ms" yaml:"elapsed_ms"`
	Points    int       `json:"points" yaml:"points"`
	Outcome   string    `json:"outcome" yaml:"outcome"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Hit reports whether the challenge was completed.
func (a Attempt) Hit() bool {
	return a.Outcome != OutcomeMissed
}

// NoteStat aggregates attempts for one note and hand.
type NoteStat struct {
	Note     string  `json:"note" yaml:"note"`
	Hand     string  `json:"hand" yaml:"hand"`
	Attempts int     `json:"attempts" yaml:"attempts"`
	Hits     int     `json:"hits" yaml:"hits"`
	AvgHitMs float64 `json:"avg_hit_ms" yaml:"avg_hit_ms"`
}

// HitRate is the share of attempts hit, in percent.
func (n NoteStat) HitRate() float64 {
	if n.Attempts == 0 {
		return 0
	}
	return float64(n.Hits) / float64(n.Attempts) * 100
}

// AttemptRepository provides operations for challenge attempts.
type AttemptRepository struct {
	db *sql.DB
}

// Attempts returns the attempt repository for this store.
func (s *Store) Attempts() *AttemptRepository {
	return &AttemptRepository{db: s.db}
}

// Create inserts an attempt and fills in its ID.
func (r *AttemptRepository) Create(a *Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	result, err := r.db.Exec(
		`INSERT INTO attempts (session_id, note, hand, finger_id, level, time_limit_ms,
		 elapsed_ms, points, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.Note, a.Hand, a.FingerID, a.Level, a.TimeLimit,
		a.Elapsed, a.Points, a.Outcome, a.CreatedAt,
	)
	if err != nil {
		return err
	}
	a.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the attempts of a session in the order they happened.
func (r *AttemptRepository) ListBySession(sessionID string) ([]Attempt, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, note, hand, finger_id, level, time_limit_ms,
		 elapsed_ms, points, outcome, created_at
		 FROM attempts
		 WHERE session_id = ?
		 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Note, &a.Hand, &a.FingerID, &a.Level,
			&a.TimeLimit, &a.Elapsed, &a.Points, &a.Outcome, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}

// NoteStats aggregates every attempt by note and hand, weakest first.
func (r *AttemptRepository) NoteStats() ([]NoteStat, error) {
	rows, err := r.db.Query(
		`SELECT note, hand, COUNT(*),
		 SUM(CASE WHEN outcome != 'missed' THEN 1 ELSE 0 END),
		 COALESCE(AVG(CASE WHEN outcome != 'missed' THEN elapsed_ms END), 0)
		 FROM attempts
		 GROUP BY note, hand
		 ORDER BY AVG(CASE WHEN outcome != 'missed' THEN 1.0 ELSE 0.0 END) ASC, note ASC, hand ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []NoteStat
	for rows.Next() {
		var n NoteStat
		if err := rows.Scan(&n.Note, &n.Hand, &n.Attempts, &n.Hits, &n.AvgHitMs); err != nil {
			return nil, err
		}
		stats = append(stats, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
