package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gestosongs/internal/app"
	"github.com/ayusman/gestosongs/internal/challenge"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
	"github.com/ayusman/gestosongs/internal/store"
)

type fakeGame struct {
	snap     app.Snapshot
	mode     app.Mode
	resets   int
	bindings *gesture.Bindings
}

func (g *fakeGame) Snapshot() app.Snapshot { return g.snap }

func (g *fakeGame) SetMode(m app.Mode) error {
	g.mode = m
	return nil
}

func (g *fakeGame) ResetStats() { g.resets++ }

func (g *fakeGame) Bindings() *gesture.Bindings { return g.bindings }

func newFakeGame() *fakeGame {
	cfg := gesture.Config{
		gesture.Left: {
			detector.IndexTip: {Sound: "c4.wav", Note: "C4"},
			detector.RingTip:  {Sound: "e4.wav", Note: "E4"},
		},
		gesture.Right: {
			detector.IndexTip: {Sound: "e4.wav", Note: "E4"},
		},
	}
	return &fakeGame{
		snap: app.Snapshot{
			Tick:  42,
			Mode:  app.ModeChallenge,
			Stats: challenge.Stats{Score: 400, Level: 1, TotalChallenges: 1, CorrectHits: 1},
			Challenge: &challenge.Challenge{
				Note: "C4", FingerID: detector.IndexTip, Hand: gesture.Left, TimeLimit: 3300 * time.Millisecond,
			},
			Hands: []app.HandView{},
		},
		bindings: gesture.NewBindings(cfg, nil),
	}
}

// newTestStore creates a Store in a temporary directory.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGameHandler_State(t *testing.T) {
	h := NewGameHandler(newFakeGame())

	rec := do(h.State, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Tick      uint64              `json:"tick"`
		Mode      string              `json:"mode"`
		Stats     struct{ Score int } `json:"stats"`
		Challenge *struct {
			Note string `json:"note"`
			Hand string `json:"hand"`
		} `json:"challenge"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, uint64(42), got.Tick)
	assert.Equal(t, "challenge", got.Mode)
	assert.Equal(t, 400, got.Stats.Score)
	require.NotNil(t, got.Challenge)
	assert.Equal(t, "C4", got.Challenge.Note)
	assert.Equal(t, "Left", got.Challenge.Hand)

	assert.Equal(t, http.StatusMethodNotAllowed, do(h.State, http.MethodPost, "/api/state", "").Code)
}

func TestGameHandler_Mode(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
		mode   app.Mode
	}{
		{"free", http.MethodPost, `{"mode":"free"}`, http.StatusAccepted, app.ModeFree},
		{"challenge", http.MethodPost, `{"mode":"challenge"}`, http.StatusAccepted, app.ModeChallenge},
		{"unknown mode", http.MethodPost, `{"mode":"zen"}`, http.StatusBadRequest, ""},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest, ""},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGame()
			rec := do(NewGameHandler(g).Mode, tt.method, "/api/mode", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.mode, g.mode)
		})
	}
}

func TestGameHandler_Reset(t *testing.T) {
	g := newFakeGame()
	h := NewGameHandler(g)

	assert.Equal(t, http.StatusAccepted, do(h.Reset, http.MethodPost, "/api/reset", "").Code)
	assert.Equal(t, 1, g.resets)

	assert.Equal(t, http.StatusMethodNotAllowed, do(h.Reset, http.MethodGet, "/api/reset", "").Code)
	assert.Equal(t, 1, g.resets)
}

func TestGameHandler_Bindings(t *testing.T) {
	h := NewGameHandler(newFakeGame())

	rec := do(h.Bindings, http.MethodGet, "/api/bindings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Bindings []struct {
			Note     string `json:"note"`
			Hand     string `json:"hand"`
			Landmark int    `json:"landmark"`
			Finger   string `json:"finger"`
		} `json:"bindings"`
		Conflicts []struct {
			Note string `json:"note"`
			Kept struct {
				Hand string `json:"hand"`
			} `json:"kept"`
		} `json:"conflicts"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))

	require.Len(t, got.Bindings, 2)
	assert.Equal(t, "C4", got.Bindings[0].Note)
	assert.Equal(t, "Left", got.Bindings[0].Hand)
	assert.Equal(t, detector.FingerName(detector.IndexTip), got.Bindings[0].Finger)
	assert.Equal(t, "E4", got.Bindings[1].Note)
	assert.Equal(t, "Right", got.Bindings[1].Hand)

	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, "E4", got.Conflicts[0].Note)
	assert.Equal(t, "Right", got.Conflicts[0].Kept.Hand)
}

func seedSessions(t *testing.T, s *store.Store) {
	t.Helper()
	base := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	ended := base.Add(time.Minute)
	require.NoError(t, s.Sessions().Create(&store.Session{
		ID: "old", Mode: "challenge", StartedAt: base, EndedAt: &ended,
		Score: 700, TotalChallenges: 4, CorrectHits: 3,
	}))
	require.NoError(t, s.Sessions().Create(&store.Session{
		ID: "new", Mode: "free", StartedAt: base.Add(time.Hour),
	}))
	require.NoError(t, s.Attempts().Create(&store.Attempt{
		SessionID: "old", Note: "C4", Hand: "Left", FingerID: 8, Level: 1,
		TimeLimit: 3300, Elapsed: 450, Points: 385, Outcome: store.OutcomePerfect,
	}))
}

func TestSessionHandler(t *testing.T) {
	s := newTestStore(t)
	seedSessions(t, s)
	h := NewSessionHandler(s)

	t.Run("list newest first", func(t *testing.T) {
		rec := do(h.ServeHTTP, http.MethodGet, "/api/sessions", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got listSessionsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got.Sessions, 2)
		assert.Equal(t, "new", got.Sessions[0].ID)
		assert.Equal(t, "old", got.Sessions[1].ID)
		assert.InDelta(t, 75.0, got.Sessions[1].Accuracy, 1e-9)
		assert.InDelta(t, 60.0, got.Sessions[1].DurationSeconds, 1e-9)
	})

	t.Run("list with limit", func(t *testing.T) {
		rec := do(h.ServeHTTP, http.MethodGet, "/api/sessions?limit=1", "")
		var got listSessionsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Len(t, got.Sessions, 1)

		assert.Equal(t, http.StatusBadRequest, do(h.ServeHTTP, http.MethodGet, "/api/sessions?limit=x", "").Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(h.ServeHTTP, http.MethodGet, "/api/sessions/old", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got sessionResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, 700, got.Score)

		assert.Equal(t, http.StatusNotFound, do(h.ServeHTTP, http.MethodGet, "/api/sessions/missing", "").Code)
	})

	t.Run("attempts", func(t *testing.T) {
		rec := do(h.ServeHTTP, http.MethodGet, "/api/sessions/old/attempts", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got listAttemptsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got.Attempts, 1)
		assert.Equal(t, store.OutcomePerfect, got.Attempts[0].Outcome)

		rec = do(h.ServeHTTP, http.MethodGet, "/api/sessions/new/attempts", "")
		assert.JSONEq(t, `{"attempts":[]}`, rec.Body.String())

		assert.Equal(t, http.StatusNotFound, do(h.ServeHTTP, http.MethodGet, "/api/sessions/missing/attempts", "").Code)
	})

	t.Run("note stats", func(t *testing.T) {
		rec := do(h.ServeHTTP, http.MethodGet, "/api/sessions/notes", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got noteStatsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got.Notes, 1)
		assert.Equal(t, "C4", got.Notes[0].Note)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do(h.ServeHTTP, http.MethodDelete, "/api/sessions/old", "").Code)
		assert.Equal(t, http.StatusNotFound, do(h.ServeHTTP, http.MethodDelete, "/api/sessions/old", "").Code)

		_, err := s.Sessions().GetByID("old")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("method not allowed", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, do(h.ServeHTTP, http.MethodPost, "/api/sessions", "{}").Code)
		assert.Equal(t, http.StatusMethodNotAllowed, do(h.ServeHTTP, http.MethodPut, "/api/sessions/new", "{}").Code)
	})

	t.Run("unknown sub path", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(h.ServeHTTP, http.MethodGet, "/api/sessions/new/laps", "").Code)
	})
}
