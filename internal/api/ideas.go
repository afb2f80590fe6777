package api

import (
	"net/http"

	"playerhub/internal/db"
	"playerhub/internal/models"
)

func (h *Handlers) HandleListIdeas(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	if sort == "" {
		sort = db.SortTop
	}
	if sort != db.SortTop && sort != db.SortNewest {
		writeError(w, http.StatusBadRequest, "sort must be top or newest")
		return
	}

	page, err := h.db.ListIdeas(r.Context(), currentUser(r), sort, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) HandleCreateIdea(w http.ResponseWriter, r *http.Request) {
	var req models.IdeaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	idea, err := h.db.CreateIdea(r.Context(), currentUser(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idea)
}

// HandleVoteIdea toggles the caller's vote.
func (h *Handlers) HandleVoteIdea(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vote, err := h.db.ToggleVote(r.Context(), id, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

func (h *Handlers) HandleDeleteIdea(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	admin, err := h.isAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.db.DeleteIdea(r.Context(), id, currentUser(r), admin); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
