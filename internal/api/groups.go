package api

import (
	"net/http"

	"go.uber.org/zap"

	"playerhub/internal/models"
)

type groupDetail struct {
	*models.Group
	Members []*models.GroupMember `json:"members"`
}

// requireMember resolves the {id} group and checks that the caller belongs to it.
func (h *Handlers) requireMember(w http.ResponseWriter, r *http.Request) (int64, bool) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}

	if _, err := h.db.GetGroup(r.Context(), groupID); err != nil {
		h.fail(w, r, err)
		return 0, false
	}
	member, err := h.db.IsMember(r.Context(), groupID, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return 0, false
	}
	if !member {
		writeError(w, http.StatusForbidden, "You are not a member of this group")
		return 0, false
	}
	return groupID, true
}

func (h *Handlers) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.db.CreateGroup(r.Context(), req.Name, currentUser(r), req.Members)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("group created", zap.Int64("group_id", group.ID), zap.Int64("owner_id", group.OwnerID))
	writeJSON(w, http.StatusCreated, group)
}

func (h *Handlers) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.db.ListUserGroups(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handlers) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	group, err := h.db.GetGroup(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	members, err := h.db.Members(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupDetail{Group: group, Members: members})
}

func (h *Handlers) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.db.DeleteGroup(r.Context(), groupID, currentUser(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	members, err := h.db.Members(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handlers) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.MemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.db.AddMember(r.Context(), groupID, currentUser(r), req.UserID); err != nil {
		h.fail(w, r, err)
		return
	}

	members, err := h.db.Members(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, members)
}

func (h *Handlers) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.MemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.db.RemoveMember(r.Context(), groupID, currentUser(r), req.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.TransferOwnershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.db.TransferOwnership(r.Context(), groupID, currentUser(r), req.NewOwnerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *Handlers) HandleGroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	messages, err := h.db.GroupHistory(r.Context(), groupID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
