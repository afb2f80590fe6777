package api

import (
	"net/http"

	"go.uber.org/zap"

	"playerhub/internal/models"
)

type statsResponse struct {
	*models.Stats
	Online int `json:"online"`
}

type setAdminRequest struct {
	IsAdmin bool `json:"isAdmin"`
}

func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Stats(r.Context(), h.opts.ActiveWindow)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: stats, Online: h.hub.OnlineCount()})
}

func (h *Handlers) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == currentUser(r) && !req.IsAdmin {
		writeError(w, http.StatusBadRequest, "You cannot revoke your own admin rights")
		return
	}

	if err := h.db.SetAdmin(r.Context(), id, req.IsAdmin); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("admin flag changed",
		zap.Int64("user_id", id),
		zap.Bool("is_admin", req.IsAdmin),
		zap.Int64("by", currentUser(r)))

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
