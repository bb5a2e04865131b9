// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/keyenc"
	"github.com/danielhkuo/quickly-buzz/ledger"
	"github.com/danielhkuo/quickly-buzz/middleware"
	"github.com/danielhkuo/quickly-buzz/models"
	"github.com/danielhkuo/quickly-buzz/store"
)

type ScoreHandler struct {
	led *ledger.Ledger
	cfg cliparse.Config
}

func NewScoreHandler(st store.Store, cfg cliparse.Config) *ScoreHandler {
	return &ScoreHandler{led: ledger.New(st, cfg.Namespace, slog.Default()), cfg: cfg}
}

func entryView(e ledger.Entry) models.Entry {
	return models.Entry{Key: e.Key, DisplayName: e.DisplayName, Score: e.Score}
}

func boardView(entries []ledger.Entry) models.Scoreboard {
	board := models.Scoreboard{Entries: make([]models.Entry, 0, len(entries))}
	for _, e := range entries {
		board.Entries = append(board.Entries, entryView(e))
	}
	return board
}

// pathKey reads {key} and rejects anything keyenc would change.
func pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.PathValue("key")
	if !keyenc.ValidKey(key) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid key")
		return "", false
	}
	return key, true
}

// Register handles POST /participants
func (h *ScoreHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if keyenc.NormalizeName(req.Name) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	e, err := h.led.Register(r.Context(), req.Name)
	if err != nil {
		writeError(w, err, "Failed to register")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entryView(e))
}

// List handles GET /scores
func (h *ScoreHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.led.Board(r.Context())
	if err != nil {
		writeError(w, err, "Failed to read scores")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, boardView(entries))
}

// Get handles GET /scores/{key}
func (h *ScoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	e, err := h.led.Get(r.Context(), key)
	if err != nil {
		writeError(w, err, "Failed to read score")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entryView(e))
}

// Delta handles POST /scores/{key}/delta
func (h *ScoreHandler) Delta(w http.ResponseWriter, r *http.Request) {
	if !requireModerator(w, r, h.cfg) {
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	var req models.DeltaRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Delta == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "delta must be nonzero")
		return
	}

	score, err := h.led.ApplyDelta(r.Context(), key, req.Delta, req.Name)
	if err != nil {
		writeError(w, err, "Failed to apply delta")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ScoreResponse{Key: key, Score: score})
}

// Reset handles POST /scores/{key}/reset
func (h *ScoreHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !requireModerator(w, r, h.cfg) {
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	if err := h.led.ResetScore(r.Context(), key); err != nil {
		writeError(w, err, "Failed to reset score")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ScoreResponse{Key: key, Score: 0})
}

// Delete handles DELETE /scores/{key}
func (h *ScoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !requireModerator(w, r, h.cfg) {
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	if err := h.led.DeleteEntry(r.Context(), key); err != nil {
		writeError(w, err, "Failed to delete entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScoreHandler) bulk(w http.ResponseWriter, r *http.Request, name string, fn func(*http.Request) error) {
	if !requireModerator(w, r, h.cfg) {
		return
	}
	before, err := h.led.Board(r.Context())
	if err != nil {
		writeError(w, err, "Failed to read scores")
		return
	}
	if err := fn(r); err != nil {
		// Earlier entries stay changed; report the partial failure.
		writeError(w, err, name+" incomplete")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.BulkResponse{Affected: len(before)})
}

// ResetAll handles POST /scores/reset-all
func (h *ScoreHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, "Reset all", func(r *http.Request) error { return h.led.ResetAll(r.Context()) })
}

// DeleteAll handles DELETE /scores
func (h *ScoreHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, "Delete all", func(r *http.Request) error { return h.led.DeleteAll(r.Context()) })
}
