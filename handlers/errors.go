// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-buzz/auth"
	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/ledger"
	"github.com/danielhkuo/quickly-buzz/middleware"
	"github.com/danielhkuo/quickly-buzz/models"
	"github.com/danielhkuo/quickly-buzz/round"
	"github.com/danielhkuo/quickly-buzz/store"
)

// requireModerator writes 401 and returns false unless the request carries
// the namespace's moderator key.
func requireModerator(w http.ResponseWriter, r *http.Request, cfg cliparse.Config) bool {
	key := r.Header.Get(models.ModeratorKeyHeader)
	if err := auth.ValidateModeratorKey(cfg.Namespace, key, cfg.ModeratorKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid moderator key")
		return false
	}
	return true
}

// statusFor maps domain and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, round.ErrRoundLocked):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidKey),
		errors.Is(err, ledger.ErrInvalidName),
		errors.Is(err, round.ErrInvalidParticipant):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the status statusFor picks. Only unexpected
// errors are logged at error level.
func writeError(w http.ResponseWriter, err error, msg string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
	} else {
		slog.Warn(msg, "error", err, "status", code)
	}
	middleware.ErrorResponse(w, code, msg+": "+err.Error())
}
