package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/MuhammadAbdiel/aora-app/internal/api"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
	"github.com/MuhammadAbdiel/aora-app/internal/repositories"
)

// AccountHandler implements account and session endpoints.
type AccountHandler struct {
	Accounts AccountStore
	Sessions SessionManager
	HashCost int
	NowFunc  func() time.Time
}

// Create handles POST /v1/account.
func (h AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("account store unavailable")
		respondInternal(ctx, w, "account services unavailable")
		return
	}

	var req api.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid account payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		logger.Warn("account missing credentials", "email", req.Email)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "email and password are required")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("account invalid email", "email", req.Email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid email address")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost())
	if err != nil {
		logger.Error("account failed to hash password", "error", err)
		respondInternal(ctx, w, "failed to secure password")
		return
	}

	account := models.Account{
		ID:           remote.ResolveID(req.UserID),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hashed),
		CreatedAt:    h.now(),
	}

	if err := h.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("account conflict", "email", req.Email)
			respondError(ctx, w, http.StatusConflict, api.TypeConflict, "A user with the same id, email, or phone already exists in this project.")
			return
		}
		logger.Error("account create failed", "error", err, "email", req.Email)
		respondInternal(ctx, w, "failed to create account")
		return
	}

	logger.Info("account created", "accountId", account.ID)
	respondJSON(ctx, w, http.StatusCreated, api.NewAccount(account))
}

// Get handles GET /v1/account.
func (h AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, ok := requireSession(w, r, h.Sessions)
	if !ok {
		return
	}

	account, err := h.Accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// The account vanished under a live session; treat the caller as signed out.
			logger.Warn("session references missing account", "accountId", session.AccountID)
			respondUnauthorized(ctx, w)
			return
		}
		logger.Error("account lookup failed", "error", err, "accountId", session.AccountID)
		respondInternal(ctx, w, "failed to load account")
		return
	}

	respondJSON(ctx, w, http.StatusOK, api.NewAccount(account))
}

// CreateEmailSession handles POST /v1/account/sessions/email. A session secret sent
// with the request is revoked once the new session exists.
func (h AccountHandler) CreateEmailSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasSessions", h.Sessions != nil)
		respondInternal(ctx, w, "authentication services unavailable")
		return
	}

	var req api.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid session payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		logger.Warn("session missing credentials", "email", req.Email)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "email and password are required")
		return
	}

	account, err := h.Accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("session account lookup failed", "error", err)
			respondInternal(ctx, w, "failed to create session")
			return
		}
		logger.Warn("session unknown email", "email", req.Email)
		respondInvalidCredentials(w, r)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("session password mismatch", "accountId", account.ID)
		respondInvalidCredentials(w, r)
		return
	}

	session, err := h.Sessions.Create(ctx, account.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "accountId", account.ID)
		respondInternal(ctx, w, "failed to create session")
		return
	}

	if previous := r.Header.Get(api.SessionHeader); previous != "" && previous != session.Secret {
		if err := h.Sessions.Revoke(ctx, previous); err != nil {
			logger.Debug("previous session not revoked", "error", err)
		}
	}

	logger.Info("session created", "accountId", account.ID, "sessionId", session.ID)
	respondJSON(ctx, w, http.StatusCreated, api.NewSession(session))
}

// DeleteSession handles DELETE /v1/account/sessions/{sessionId}. Only the caller's own
// session may be deleted, addressed either by id or as "current".
func (h AccountHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, ok := requireSession(w, r, h.Sessions)
	if !ok {
		return
	}

	sessionID := mux.Vars(r)["sessionId"]
	if sessionID != remote.CurrentSession && sessionID != session.ID {
		logger.Warn("delete unknown session", "sessionId", sessionID)
		respondError(ctx, w, http.StatusNotFound, api.TypeNotFound, "Session with the requested ID could not be found.")
		return
	}

	if err := h.Sessions.Revoke(ctx, session.Secret); err != nil {
		logger.Error("revoke session failed", "error", err, "sessionId", session.ID)
		respondInternal(ctx, w, "failed to delete session")
		return
	}

	logger.Info("session deleted", "accountId", session.AccountID, "sessionId", session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func respondInvalidCredentials(w http.ResponseWriter, r *http.Request) {
	respondError(r.Context(), w, http.StatusUnauthorized, api.TypeInvalidCredentials,
		"Invalid credentials. Please check the email and password.")
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (h AccountHandler) hashCost() int {
	if h.HashCost != 0 {
		return h.HashCost
	}
	return bcrypt.DefaultCost
}

func (h AccountHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
