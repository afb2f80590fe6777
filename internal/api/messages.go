package api

import (
	"net/http"
)

// HandleDirectHistory returns the conversation between two users, oldest first.
// The caller must be one of them.
func (h *Handlers) HandleDirectHistory(w http.ResponseWriter, r *http.Request) {
	from, err := pathID(r, "fromUserId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := pathID(r, "toUserId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if me := currentUser(r); me != from && me != to {
		writeError(w, http.StatusForbidden, "You can only read your own conversations")
		return
	}

	messages, err := h.db.DirectHistory(r.Context(), from, to, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handlers) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.db.MarkRead(r.Context(), id, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handlers) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.db.DeleteMessage(r.Context(), id, currentUser(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
