package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oleg-smirsky/LaudReader/cache"
)

// GetPlayerHandler returns the current player state. When the in-memory
// player is unbound (typically right after a restart) the last state
// mirrored into Redis is served instead, flagged as not playing, so
// pollers can resume where the listener left off.
func (h *APIHandler) GetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	state := h.controller.State()
	if !state.Bound() {
		if cached, err := cache.GetPlayerState(r.Context()); err == nil && cached.Bound() {
			cached.IsPlaying = false
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}
	respondJSON(w, http.StatusOK, state)
}

// ToggleHandler flips play/pause for the bound article.
func (h *APIHandler) ToggleHandler(w http.ResponseWriter, r *http.Request) {
	h.controller.TogglePlayPause()
	respondJSON(w, http.StatusOK, h.controller.State())
}

// SeekHandler jumps back or forward one step.
func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "request body must be {\"direction\": \"back\"|\"forward\"}")
		return
	}

	switch req.Direction {
	case "back":
		h.controller.SeekBack()
	case "forward":
		h.controller.SeekForward()
	default:
		respondError(w, http.StatusBadRequest, "direction must be \"back\" or \"forward\"")
		return
	}
	respondJSON(w, http.StatusOK, h.controller.State())
}

// ReportHandler receives the remote player's observed state. The web
// client posts this once a second while playing; completed marks the
// end of the stream.
func (h *APIHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionMs int64 `json:"positionMs"`
		DurationMs int64 `json:"durationMs"`
		IsPlaying  bool  `json:"isPlaying"`
		Completed  bool  `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid report body")
		return
	}

	h.engine.Report(
		time.Duration(req.PositionMs)*time.Millisecond,
		time.Duration(req.DurationMs)*time.Millisecond,
		req.IsPlaying,
	)
	if req.Completed {
		h.engine.Complete()
	}
	respondJSON(w, http.StatusOK, h.controller.State())
}
