package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/gestosongs/internal/app"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/gesture"
)

// Game is the part of the running game the HTTP API controls.
type Game interface {
	Snapshot() app.Snapshot
	SetMode(app.Mode) error
	ResetStats()
	Bindings() *gesture.Bindings
}

// GameHandler serves the live game state and its controls.
type GameHandler struct {
	game Game
}

// NewGameHandler creates a GameHandler for g.
func NewGameHandler(g Game) *GameHandler {
	return &GameHandler{game: g}
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode string `json:"mode"`
}

type bindingResponse struct {
	gesture.Entry
	Finger string `json:"finger"`
}

type bindingsResponse struct {
	Bindings  []bindingResponse  `json:"bindings"`
	Conflicts []gesture.Conflict `json:"conflicts"`
}

// State handles GET /api/state.
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.game.Snapshot())
}

// Mode handles POST /api/mode. The change applies on the next game tick.
func (h *GameHandler) Mode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	mode, err := app.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Mode must be challenge or free")
		return
	}
	if err := h.game.SetMode(mode); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set mode")
		return
	}

	writeJSON(w, http.StatusAccepted, modeResponse{Mode: string(mode)})
}

// Reset handles POST /api/reset.
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	h.game.ResetStats()
	w.WriteHeader(http.StatusAccepted)
}

// Bindings handles GET /api/bindings.
func (h *GameHandler) Bindings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	b := h.game.Bindings()
	response := bindingsResponse{
		Bindings:  make([]bindingResponse, 0, b.Len()),
		Conflicts: b.Conflicts(),
	}
	for _, e := range b.Entries() {
		response.Bindings = append(response.Bindings, bindingResponse{
			Entry:  e,
			Finger: detector.FingerName(e.Landmark),
		})
	}
	if response.Conflicts == nil {
		response.Conflicts = []gesture.Conflict{}
	}

	writeJSON(w, http.StatusOK, response)
}
