package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"playerhub/internal/auth"
	"playerhub/internal/db"
	"playerhub/internal/models"
)

const minPasswordLength = 6

// Auth handlers
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Username) > 32 {
		writeError(w, http.StatusBadRequest, "Username must be between 1 and 32 characters")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password is too short")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.Username, hash, req.Language, req.Region)
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	h.startSession(w, r, user, http.StatusCreated)
}

func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.fail(w, r, err)
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.db.TouchLastActive(r.Context(), user.ID); err != nil {
		h.logger.Warn("failed to refresh last active", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	h.startSession(w, r, user, http.StatusOK)
}

// startSession sets the session cookie and answers with a bearer token for
// non-browser clients.
func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.StartSession(w, r, user.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, status, models.LoginResponse{Token: token, User: *user})
}

func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.EndSession(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.db.GetUserByID(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
