package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per game run or stats reset
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('challenge', 'free')),
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			score INTEGER NOT NULL DEFAULT 0,
			total_challenges INTEGER NOT NULL DEFAULT 0,
			correct_hits INTEGER NOT NULL DEFAULT 0,
			max_streak INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			perfect_hits INTEGER NOT NULL DEFAULT 0
		)`,

		// Attempts table - one row per finished challenge
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			note TEXT NOT NULL,
			hand TEXT NOT NULL,
			finger_id INTEGER NOT NULL,
			level INTEGER NOT NULL,
			time_limit_ms INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL CHECK(outcome IN ('perfect', 'points', 'level_up', 'missed')),
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_attempts_session_id ON attempts(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
