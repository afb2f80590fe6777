package api

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleWebSocket upgrades an authenticated request. The identity resolved here is
// the only sender id the relay will accept for frames on this socket.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		h.logger.Debug("websocket rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if _, err := h.db.GetUserByID(r.Context(), userID); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if err := h.db.TouchLastActive(r.Context(), userID); err != nil {
		h.logger.Warn("failed to refresh last active", zap.Int64("user_id", userID), zap.Error(err))
	}
	h.hub.Connect(conn, userID)
}
