package api

import (
	"net/http"

	"go.uber.org/zap"

	"playerhub/internal/models"
)

// User handlers
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.db.ListUsers(r.Context(), models.UserFilter{
		Search:   q.Get("search"),
		Language: q.Get("language"),
		Region:   q.Get("region"),
		Game:     q.Get("game"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// authorizeSelf allows a request acting on userID from that user or an admin.
func (h *Handlers) authorizeSelf(w http.ResponseWriter, r *http.Request, userID int64) bool {
	if currentUser(r) == userID {
		return true
	}
	admin, err := h.isAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	if !admin {
		writeError(w, http.StatusForbidden, "You can only change your own account")
		return false
	}
	return true
}

func (h *Handlers) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.authorizeSelf(w, r, id) {
		return
	}

	var req models.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.db.UpdateUser(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.authorizeSelf(w, r, id) {
		return
	}

	if err := h.db.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.hub.Disconnect(id)

	if id == currentUser(r) {
		if err := h.auth.EndSession(w, r); err != nil {
			h.logger.Warn("failed to clear session", zap.Int64("user_id", id), zap.Error(err))
		}
	}
	h.logger.Info("user deleted", zap.Int64("user_id", id), zap.Int64("by", currentUser(r)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.db.TouchLastActive(r.Context(), currentUser(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
