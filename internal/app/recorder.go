package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/store"
)

// recorderQueue bounds the writes waiting for the database. When it is full
// new writes are dropped so the tick never blocks on I/O.
const recorderQueue = 256

// recorder writes the session history from its own goroutine. Its methods
// are called from the tick goroutine only.
type recorder struct {
	sessions *store.SessionRepository
	attempts *store.AttemptRepository
	logger   *slog.Logger

	ops  chan func() error
	done chan struct{}
	once sync.Once

	session *store.Session
	dropped int
}

func newRecorder(s *store.Store, logger *slog.Logger) *recorder {
	r := &recorder{
		sessions: s.Sessions(),
		attempts: s.Attempts(),
		logger:   logger,
		ops:      make(chan func() error, recorderQueue),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *recorder) loop() {
	defer close(r.done)
	for op := range r.ops {
		if err := op(); err != nil {
			r.logger.Warn("history write failed", "error", err)
		}
	}
}

func (r *recorder) submit(op func() error) {
	select {
	case r.ops <- op:
	default:
		r.dropped++
		r.logger.Warn("history queue full, dropping write", "dropped", r.dropped)
	}
}

func (r *recorder) begin(mode Mode, now time.Time) {
	s := &store.Session{
		ID:        uuid.NewString(),
		Mode:      string(mode),
		StartedAt: now,
		Level:     1,
	}
	r.session = s
	created := *s
	r.submit(func() error { return r.sessions.Create(&created) })
	r.logger.Debug("history session started", "session", s.ID)
}

func (r *recorder) setMode(mode Mode) {
	if r.session == nil {
		return
	}
	r.session.Mode = string(mode)
	r.update()
}

func (r *recorder) attempt(res challenge.Result, stats challenge.Stats, mode Mode) {
	if r.session == nil {
		return
	}
	a := store.Attempt{
		SessionID: r.session.ID,
		Note:      res.Challenge.Note,
		Hand:      string(res.Challenge.Hand),
		FingerID:  res.Challenge.FingerID,
		Level:     levelAtStart(res),
		TimeLimit: res.Challenge.TimeLimit.Milliseconds(),
		Elapsed:   res.Elapsed.Milliseconds(),
		Points:    res.Points,
		Outcome:   string(res.Kind),
		CreatedAt: res.Timestamp,
	}
	r.submit(func() error { return r.attempts.Create(&a) })

	r.session.Mode = string(mode)
	r.session.Score = stats.Score
	r.session.TotalChallenges = stats.TotalChallenges
	r.session.CorrectHits = stats.CorrectHits
	r.session.MaxStreak = stats.MaxStreak
	r.session.Level = stats.Level
	r.session.PerfectHits = stats.PerfectHits
	r.update()
}

func (r *recorder) end(now time.Time) {
	if r.session == nil {
		return
	}
	r.session.EndedAt = &now
	r.update()
	r.logger.Debug("history session ended", "session", r.session.ID, "score", r.session.Score)
	r.session = nil
}

func (r *recorder) update() {
	s := *r.session
	r.submit(func() error { return r.sessions.Update(&s) })
}

// close flushes pending writes and stops the goroutine.
func (r *recorder) close() {
	r.once.Do(func() { close(r.ops) })
	<-r.done
}

// levelAtStart is the level the challenge was played at. A level-up result
// already carries the new level.
func levelAtStart(res challenge.Result) int {
	if res.Kind == challenge.KindLevelUp {
		return res.Level - 1
	}
	return res.Level
}
