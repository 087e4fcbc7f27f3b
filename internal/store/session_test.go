package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	t.Run("fills id, start and level", func(t *testing.T) {
		session := &Session{Mode: "challenge"}
		require.NoError(t, repo.Create(session))

		_, err := uuid.Parse(session.ID)
		assert.NoError(t, err, "id should be a uuid")
		assert.False(t, session.StartedAt.IsZero())
		assert.Equal(t, 1, session.Level)
	})

	t.Run("round trip", func(t *testing.T) {
		session := &Session{ID: "s-1", Mode: "free", StartedAt: base, Level: 3, Score: 900}
		require.NoError(t, repo.Create(session))

		got, err := repo.GetByID("s-1")
		require.NoError(t, err)
		assert.Equal(t, "free", got.Mode)
		assert.True(t, got.StartedAt.Equal(base))
		assert.Nil(t, got.EndedAt)
		assert.Equal(t, 3, got.Level)
		assert.Equal(t, 900, got.Score)
	})

	t.Run("duplicate id", func(t *testing.T) {
		assert.Error(t, repo.Create(&Session{ID: "s-1", Mode: "free"}))
	})

	t.Run("mode is checked", func(t *testing.T) {
		assert.Error(t, repo.Create(&Session{Mode: "zen"}))
	})
}

func TestSessionRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	session := &Session{ID: "s-1", Mode: "challenge", StartedAt: base}
	require.NoError(t, repo.Create(session))

	ended := base.Add(90 * time.Second)
	session.EndedAt = &ended
	session.Score, session.TotalChallenges, session.CorrectHits = 1200, 10, 7
	session.MaxStreak, session.Level, session.PerfectHits = 4, 2, 3
	require.NoError(t, repo.Update(session))

	got, err := repo.GetByID("s-1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(ended))
	assert.Equal(t, 90*time.Second, got.Duration())
	assert.Equal(t, 1200, got.Score)
	assert.InDelta(t, 70.0, got.Accuracy(), 1e-9)
	assert.Equal(t, 4, got.MaxStreak)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 3, got.PerfectHits)

	err = repo.Update(&Session{ID: "missing", Mode: "free"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSessionRepository_ListAndBest(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	_, err := repo.Best()
	assert.True(t, errors.Is(err, ErrNotFound))

	for i, score := range []int{300, 1500, 800} {
		require.NoError(t, repo.Create(&Session{
			ID:        string(rune('a' + i)),
			Mode:      "challenge",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Score:     score,
		}))
	}

	all, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	last, err := repo.List(2)
	require.NoError(t, err)
	assert.Len(t, last, 2)

	best, err := repo.Best()
	require.NoError(t, err)
	assert.Equal(t, "b", best.ID)
}

func TestSessionRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Sessions().Create(&Session{ID: "s-1", Mode: "challenge"}))
	require.NoError(t, s.Attempts().Create(&Attempt{
		SessionID: "s-1", Note: "C4", Hand: "Left", FingerID: 8, Level: 1,
		TimeLimit: 3300, Elapsed: 800, Points: 350, Outcome: OutcomePoints,
	}))

	require.NoError(t, s.Sessions().Delete("s-1"))

	_, err := s.Sessions().GetByID("s-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	attempts, err := s.Attempts().ListBySession("s-1")
	require.NoError(t, err)
	assert.Empty(t, attempts, "attempts cascade")

	assert.True(t, errors.Is(s.Sessions().Delete("s-1"), ErrNotFound))
}

func TestAttemptRepository(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Sessions().Create(&Session{ID: "s-1", Mode: "challenge"}))
	repo := s.Attempts()

	add := func(note, hand, outcome string, elapsed int64) {
		t.Helper()
		a := &Attempt{
			SessionID: "s-1", Note: note, Hand: hand, FingerID: 8, Level: 1,
			TimeLimit: 3300, Elapsed: elapsed, Outcome: outcome,
		}
		require.NoError(t, repo.Create(a))
		assert.NotZero(t, a.ID)
	}
	add("C4", "Left", OutcomePerfect, 400)
	add("C4", "Left", OutcomePoints, 1000)
	add("G4", "Right", OutcomeMissed, 3400)
	add("G4", "Right", OutcomeLevelUp, 1500)
	add("E4", "Right", OutcomeMissed, 3400)

	t.Run("list keeps order", func(t *testing.T) {
		attempts, err := repo.ListBySession("s-1")
		require.NoError(t, err)
		require.Len(t, attempts, 5)
		assert.Equal(t, OutcomePerfect, attempts[0].Outcome)
		assert.True(t, attempts[0].Hit())
		assert.False(t, attempts[4].Hit())
	})

	t.Run("unknown session", func(t *testing.T) {
		err := repo.Create(&Attempt{SessionID: "nope", Note: "C4", Hand: "Left", Outcome: OutcomeMissed})
		assert.Error(t, err, "foreign key")
	})

	t.Run("note stats weakest first", func(t *testing.T) {
		stats, err := repo.NoteStats()
		require.NoError(t, err)
		require.Len(t, stats, 3)

		assert.Equal(t, NoteStat{Note: "E4", Hand: "Right", Attempts: 1, Hits: 0, AvgHitMs: 0}, stats[0])
		assert.Equal(t, "G4", stats[1].Note)
		assert.InDelta(t, 50.0, stats[1].HitRate(), 1e-9)
		assert.InDelta(t, 1500.0, stats[1].AvgHitMs, 1e-9)
		assert.Equal(t, "C4", stats[2].Note)
		assert.InDelta(t, 700.0, stats[2].AvgHitMs, 1e-9)
	})
}
