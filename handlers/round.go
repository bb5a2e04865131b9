// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-buzz/auth"
	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/keyenc"
	"github.com/danielhkuo/quickly-buzz/ledger"
	"github.com/danielhkuo/quickly-buzz/middleware"
	"github.com/danielhkuo/quickly-buzz/models"
	"github.com/danielhkuo/quickly-buzz/round"
	"github.com/danielhkuo/quickly-buzz/store"
)

type RoundHandler struct {
	arb *round.Arbiter
	ctl *round.Controller
	cfg cliparse.Config
}

func NewRoundHandler(st store.Store, cfg cliparse.Config) *RoundHandler {
	led := ledger.New(st, cfg.Namespace, slog.Default())
	return &RoundHandler{
		arb: round.NewArbiter(st, cfg.Namespace, cfg.Round(), round.WithScorer(led)),
		ctl: round.NewController(st, cfg.Namespace, slog.Default()),
		cfg: cfg,
	}
}

func roundView(s round.State, rev uint64) models.Round {
	v := models.Round{
		Phase:    s.Phase().String(),
		GateOpen: s.GateOpen,
		Revision: rev,
	}
	if s.Winner != nil {
		v.Winner = &models.Claim{ParticipantID: s.Winner.ParticipantID, ClaimedAt: s.Winner.ClaimedAt}
	}
	if s.RunnerUp != nil {
		v.RunnerUp = &models.Claim{ParticipantID: s.RunnerUp.ParticipantID, ClaimedAt: s.RunnerUp.ClaimedAt}
	}
	return v
}

// Get handles GET /round
func (h *RoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, rev, err := h.ctl.Current(r.Context())
	if err != nil {
		writeError(w, err, "Failed to read round")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, roundView(s, rev))
}

// Claim handles POST /round/claim
func (h *RoundHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	name := keyenc.NormalizeName(req.Name)
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	outcome, err := h.arb.AttemptClaim(r.Context(), name)
	var warning string
	if err != nil {
		if !errors.Is(err, round.ErrScoring) {
			writeError(w, err, "Failed to claim")
			return
		}
		warning = err.Error()
	}

	slog.Info("claim handled",
		"participant", name,
		"outcome", outcome.String(),
		"client", auth.HashIP(middleware.GetClientIP(r), h.cfg.ModeratorKeySalt),
	)

	resp := models.ClaimResponse{Outcome: outcome.String(), Warning: warning}
	if s, rev, err := h.ctl.Current(r.Context()); err == nil {
		resp.Round = roundView(s, rev)
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

func (h *RoundHandler) transition(w http.ResponseWriter, r *http.Request, name string, fn func(*round.Controller, *http.Request) error) {
	if !requireModerator(w, r, h.cfg) {
		return
	}
	if err := fn(h.ctl, r); err != nil {
		writeError(w, err, "Failed to "+name+" round")
		return
	}
	s, rev, err := h.ctl.Current(r.Context())
	if err != nil {
		writeError(w, err, "Failed to read round")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, roundView(s, rev))
}

// Open handles POST /round/open
func (h *RoundHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "open", func(c *round.Controller, r *http.Request) error { return c.Open(r.Context()) })
}

// Close handles POST /round/close
func (h *RoundHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "close", func(c *round.Controller, r *http.Request) error { return c.Close(r.Context()) })
}

// Reset handles POST /round/reset
func (h *RoundHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reset", func(c *round.Controller, r *http.Request) error { return c.Reset(r.Context()) })
}

// Restart handles POST /round/restart
func (h *RoundHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "restart", func(c *round.Controller, r *http.Request) error { return c.Restart(r.Context()) })
}
