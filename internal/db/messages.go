package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"playerhub/internal/models"
)

const messageColumns = `id, sender_id, recipient_id, group_id, content, content_type, created_at, is_read, read_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg         models.Message
		recipientID sql.NullInt64
		groupID     sql.NullInt64
		readAt      sql.NullTime
	)
	err := row.Scan(&msg.ID, &msg.SenderID, &recipientID, &groupID, &msg.Content,
		&msg.ContentType, &msg.CreatedAt, &msg.IsRead, &readAt)
	if err != nil {
		return nil, err
	}
	msg.RecipientID = nullInt(recipientID)
	msg.GroupID = nullInt(groupID)
	msg.ReadAt = nullTime(readAt)
	return &msg, nil
}

// Message methods

// CreateMessage persists msg and fills in its generated ID and timestamp. Exactly one
// of RecipientID and GroupID must be set.
func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if (msg.RecipientID == nil) == (msg.GroupID == nil) {
		return nil, fmt.Errorf("message needs exactly one of recipient and group: %w", ErrInvalid)
	}
	if msg.ContentType == "" {
		msg.ContentType = models.ContentText
	}
	msg.CreatedAt = now()
	msg.IsRead = false
	msg.ReadAt = nil

	result, err := db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, group_id, content, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.SenderID, msg.RecipientID, msg.GroupID, msg.Content, msg.ContentType, msg.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("unknown sender, recipient or group: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message ID: %w", err)
	}

	msg.ID = id
	return msg, nil
}

func (db *DB) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	msg, err := scanMessage(db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %d: %w", id, err)
	}
	return msg, nil
}

// DirectHistory returns a page of the conversation between two users, oldest first.
// Offset counts back from the newest message.
func (db *DB) DirectHistory(ctx context.Context, userA, userB int64, limit, offset int) ([]*models.Message, error) {
	limit, offset = clampPage(limit, offset, 50, 500)
	return db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userA, userB, userB, userA, limit, offset)
}

// GroupHistory returns a page of the messages of a group, oldest first.
func (db *DB) GroupHistory(ctx context.Context, groupID int64, limit, offset int) ([]*models.Message, error) {
	limit, offset = clampPage(limit, offset, 50, 500)
	return db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE group_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, groupID, limit, offset)
}

// queryMessages runs a newest-first query and returns the rows oldest first.
func (db *DB) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead sets the read flag of a direct message. Only its recipient may do so.
func (db *DB) MarkRead(ctx context.Context, messageID, readerID int64) (*models.Message, error) {
	msg, err := db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID == nil || *msg.RecipientID != readerID {
		return nil, fmt.Errorf("user %d cannot mark message %d read: %w", readerID, messageID, ErrForbidden)
	}
	if msg.IsRead {
		return msg, nil
	}

	readAt := now()
	if _, err := db.ExecContext(ctx,
		"UPDATE messages SET is_read = 1, read_at = ? WHERE id = ?", readAt, messageID); err != nil {
		return nil, fmt.Errorf("failed to mark message %d read: %w", messageID, err)
	}
	msg.IsRead = true
	msg.ReadAt = &readAt
	return msg, nil
}

// DeleteMessage removes a message on behalf of its sender.
func (db *DB) DeleteMessage(ctx context.Context, messageID, senderID int64) error {
	msg, err := db.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return fmt.Errorf("user %d cannot delete message %d: %w", senderID, messageID, ErrForbidden)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", messageID); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}
