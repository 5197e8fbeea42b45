package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MuhammadAbdiel/aora-app/internal/api"
	"github.com/MuhammadAbdiel/aora-app/internal/auth"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, errType, message string) {
	respondJSON(ctx, w, status, api.Error{Message: message, Code: status, Type: errType})
}

func respondUnauthorized(ctx context.Context, w http.ResponseWriter) {
	respondError(ctx, w, http.StatusUnauthorized, api.TypeUnauthorized, "The current user is not authorized to perform the requested action.")
}

func respondInternal(ctx context.Context, w http.ResponseWriter, message string) {
	respondError(ctx, w, http.StatusInternalServerError, api.TypeInternal, message)
}

// requireSession resolves the caller's session from the session header. It writes a
// 401 and reports false when the caller is not signed in.
func requireSession(w http.ResponseWriter, r *http.Request, sessions SessionManager) (models.Session, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if sessions == nil {
		logger.Error("session manager unavailable")
		respondInternal(ctx, w, "session service unavailable")
		return models.Session{}, false
	}

	session, err := sessions.Resolve(ctx, r.Header.Get(api.SessionHeader))
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrSessionExpired) {
			logger.Error("resolve session failed", "error", err)
			respondInternal(ctx, w, "unable to verify session")
			return models.Session{}, false
		}
		respondUnauthorized(ctx, w)
		return models.Session{}, false
	}
	return session, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}
