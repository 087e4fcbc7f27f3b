package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/gestosongs/internal/store"
)

// SessionHandler serves the play history.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler backed by s.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	*store.Session
	Accuracy        float64 `json:"accuracy"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type listAttemptsResponse struct {
	Attempts []store.Attempt `json:"attempts"`
}

type noteStatsResponse struct {
	Notes []store.NoteStat `json:"notes"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	return sessionResponse{
		Session:         s,
		Accuracy:        s.Accuracy(),
		DurationSeconds: s.Duration().Seconds(),
	}
}

// ServeHTTP routes /api/sessions, /api/sessions/notes, /api/sessions/{id}
// and /api/sessions/{id}/attempts.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.list(w, r)

	case path == "notes":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.notes(w)

	case strings.HasSuffix(path, "/attempts"):
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.attempts(w, strings.TrimSuffix(path, "/attempts"))

	case !strings.Contains(path, "/"):
		switch r.Method {
		case http.MethodGet:
			h.get(w, path)
		case http.MethodDelete:
			h.delete(w, path)
		default:
			methodNotAllowed(w)
		}

	default:
		http.NotFound(w, r)
	}
}

// list handles GET /api/sessions?limit=N, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) attempts(w http.ResponseWriter, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	attempts, err := h.store.Attempts().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []store.Attempt{}
	}

	writeJSON(w, http.StatusOK, listAttemptsResponse{Attempts: attempts})
}

// notes handles GET /api/sessions/notes, the per-note hit rates across all
// sessions.
func (h *SessionHandler) notes(w http.ResponseWriter) {
	stats, err := h.store.Attempts().NoteStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to aggregate notes")
		return
	}
	if stats == nil {
		stats = []store.NoteStat{}
	}
	writeJSON(w, http.StatusOK, noteStatsResponse{Notes: stats})
}
