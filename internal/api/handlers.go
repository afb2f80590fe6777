package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playerhub/internal/auth"
	"playerhub/internal/db"
	"playerhub/internal/websocket"
)

type Handlers struct {
	db       *db.DB
	hub      *websocket.Hub
	auth     *auth.Provider
	logger   *zap.Logger
	upgrader gorilla.Upgrader
	opts     Options
}

type Options struct {
	AllowedOrigin string
	UploadDir     string
	ActiveWindow  time.Duration
}

func NewHandlers(database *db.DB, hub *websocket.Hub, provider *auth.Provider, logger *zap.Logger, opts Options) *Handlers {
	return &Handlers{
		db:     database,
		hub:    hub,
		auth:   provider,
		logger: logger,
		opts:   opts,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == opts.AllowedOrigin
			},
		},
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// fail maps a store error to its HTTP status. Unexpected errors are logged and
// reported without detail.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, db.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// currentUser returns the id WithAuth stored on the request.
func currentUser(r *http.Request) int64 {
	id, _ := auth.UserID(r.Context())
	return id
}

func (h *Handlers) isAdmin(r *http.Request) (bool, error) {
	return h.db.IsAdmin(r.Context(), currentUser(r))
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": h.hub.OnlineCount(),
	})
}
