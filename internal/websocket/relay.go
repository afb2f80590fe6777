package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"playerhub/internal/models"
)

const (
	frameMessage         = "message"
	frameGroupMessage    = "groupMessage"
	frameTyping          = "typing"
	frameGroupTyping     = "groupTyping"
	frameError           = "error"
	frameSessionReplaced = "sessionReplaced"
)

const (
	errNotMember        = "You are not a member of this group"
	errIdentityMismatch = "fromUserId does not match the authenticated user"
	errContentTooLong   = "Message content is too long"
)

// maxContentLength bounds message content in bytes. It sits far below
// maxFrameSize, so an oversized message is answered with an error frame instead
// of failing the read and dropping the socket.
const maxContentLength = 16 * 1024

var errMalformedFrame = errors.New("malformed frame")

// inboundFrame is any client frame. Pointer fields tell a missing field from a zero value.
type inboundFrame struct {
	Type       string  `json:"type"`
	FromUserID *int64  `json:"fromUserId"`
	ToUserID   *int64  `json:"toUserId"`
	GroupID    *int64  `json:"groupId"`
	Content    *string `json:"content"`
	IsTyping   *bool   `json:"isTyping"`
}

type messageFrame struct {
	Type string `json:"type"`
	*models.Message
}

type typingFrame struct {
	Type       string `json:"type"`
	FromUserID int64  `json:"fromUserId"`
	ToUserID   *int64 `json:"toUserId,omitempty"`
	GroupID    *int64 `json:"groupId,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type controlFrame struct {
	Type string `json:"type"`
}

// handleFrame processes one client frame. Returned errors are logged by the read
// pump and never close the socket.
func (h *Hub) handleFrame(c *Client, data []byte) error {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", errMalformedFrame, err)
	}

	// The sender is whoever authenticated the socket; a claimed fromUserId may only agree.
	if in.FromUserID != nil && *in.FromUserID != c.userID {
		h.sendError(c, errIdentityMismatch)
		return fmt.Errorf("frame claims user %d on a socket bound to %d", *in.FromUserID, c.userID)
	}

	switch in.Type {
	case frameMessage:
		if in.ToUserID == nil || !hasContent(in.Content) {
			return fmt.Errorf("%w: message needs toUserId and content", errMalformedFrame)
		}
		if err := h.checkLength(c, *in.Content); err != nil {
			return err
		}
		return h.relayDirect(c, *in.ToUserID, *in.Content)
	case frameGroupMessage:
		if in.GroupID == nil || !hasContent(in.Content) {
			return fmt.Errorf("%w: groupMessage needs groupId and content", errMalformedFrame)
		}
		if err := h.checkLength(c, *in.Content); err != nil {
			return err
		}
		return h.relayGroup(c, *in.GroupID, *in.Content)
	case frameTyping:
		if in.ToUserID == nil || in.IsTyping == nil {
			return fmt.Errorf("%w: typing needs toUserId and isTyping", errMalformedFrame)
		}
		return h.relayTyping(c, *in.ToUserID, *in.IsTyping)
	case frameGroupTyping:
		if in.GroupID == nil || in.IsTyping == nil {
			return fmt.Errorf("%w: groupTyping needs groupId and isTyping", errMalformedFrame)
		}
		return h.relayGroupTyping(c, *in.GroupID, *in.IsTyping)
	default:
		return fmt.Errorf("%w: unknown type %q", errMalformedFrame, in.Type)
	}
}

func (h *Hub) checkLength(c *Client, content string) error {
	if len(content) <= maxContentLength {
		return nil
	}
	h.sendError(c, errContentTooLong)
	return fmt.Errorf("content of %d bytes exceeds %d", len(content), maxContentLength)
}

func hasContent(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func (h *Hub) relayDirect(c *Client, toUserID int64, content string) error {
	recipient := toUserID
	msg, err := h.store.CreateMessage(h.ctx, &models.Message{
		SenderID:    c.userID,
		RecipientID: &recipient,
		Content:     content,
		ContentType: models.ContentTypeOf(content),
	})
	if err != nil {
		return fmt.Errorf("failed to persist direct message: %w", err)
	}
	h.touch(c)

	data, err := json.Marshal(messageFrame{Type: frameMessage, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if toUserID != c.userID {
		h.sendTo(toUserID, data)
	}
	h.push(c, data)
	return nil
}

func (h *Hub) relayGroup(c *Client, groupID int64, content string) error {
	ok, err := h.store.IsMember(h.ctx, groupID, c.userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		h.sendError(c, errNotMember)
		return nil
	}

	group := groupID
	msg, err := h.store.CreateMessage(h.ctx, &models.Message{
		SenderID:    c.userID,
		GroupID:     &group,
		Content:     content,
		ContentType: models.ContentTypeOf(content),
	})
	if err != nil {
		return fmt.Errorf("failed to persist group message: %w", err)
	}
	h.touch(c)

	data, err := json.Marshal(messageFrame{Type: frameGroupMessage, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to encode group message: %w", err)
	}

	delivered, err := h.fanOut(c, groupID, data)
	if err != nil {
		// Persisted already; the sender still gets its confirmation.
		h.logger.Warn("group fan-out failed", zap.Int64("group_id", groupID), zap.Error(err))
	}
	h.push(c, data)

	h.logger.Debug("group message relayed",
		zap.Int64("group_id", groupID),
		zap.Int64("message_id", msg.ID),
		zap.Int("delivered", delivered))
	return nil
}

func (h *Hub) relayTyping(c *Client, toUserID int64, isTyping bool) error {
	if toUserID == c.userID {
		return nil
	}
	recipient := toUserID
	data, err := json.Marshal(typingFrame{
		Type:       frameTyping,
		FromUserID: c.userID,
		ToUserID:   &recipient,
		IsTyping:   isTyping,
	})
	if err != nil {
		return fmt.Errorf("failed to encode typing frame: %w", err)
	}
	h.sendTo(toUserID, data)
	return nil
}

func (h *Hub) relayGroupTyping(c *Client, groupID int64, isTyping bool) error {
	ok, err := h.store.IsMember(h.ctx, groupID, c.userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		h.sendError(c, errNotMember)
		return nil
	}

	group := groupID
	data, err := json.Marshal(typingFrame{
		Type:       frameGroupTyping,
		FromUserID: c.userID,
		GroupID:    &group,
		IsTyping:   isTyping,
	})
	if err != nil {
		return fmt.Errorf("failed to encode typing frame: %w", err)
	}
	_, err = h.fanOut(c, groupID, data)
	return err
}

// fanOut pushes data to every registered member of groupID except the sender, in
// the order the store lists members. Membership is read fresh on every call.
func (h *Hub) fanOut(sender *Client, groupID int64, data []byte) (int, error) {
	members, err := h.store.MemberIDs(h.ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to load members of group %d: %w", groupID, err)
	}

	delivered := 0
	for _, id := range members {
		if id == sender.userID {
			continue
		}
		if h.sendTo(id, data) {
			delivered++
		}
	}
	return delivered, nil
}

func (h *Hub) sendError(c *Client, message string) {
	data, err := json.Marshal(errorFrame{Type: frameError, Message: message})
	if err != nil {
		return
	}
	h.push(c, data)
}

func (h *Hub) touch(c *Client) {
	if err := h.store.TouchLastActive(h.ctx, c.userID); err != nil {
		c.logger.Debug("failed to refresh last active", zap.Error(err))
	}
}
