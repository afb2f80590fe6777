package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"playerhub/internal/models"
)

// Group methods

// CreateGroup creates a group owned by ownerID. The owner becomes the first member,
// followed by any initial members.
func (db *DB) CreateGroup(ctx context.Context, name string, ownerID int64, members []int64) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("group name is empty: %w", ErrInvalid)
	}

	group := &models.Group{Name: name, OwnerID: ownerID, CreatedAt: now()}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO chat_groups (name, owner_id, created_at) VALUES (?, ?, ?)",
			group.Name, group.OwnerID, group.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("owner %d: %w", ownerID, ErrNotFound)
			}
			return fmt.Errorf("failed to create group: %w", err)
		}
		if group.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get group ID: %w", err)
		}

		seen := map[int64]bool{}
		for _, userID := range append([]int64{ownerID}, members...) {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO group_members (group_id, user_id, is_admin, joined_at) VALUES (?, ?, ?, ?)",
				group.ID, userID, userID == ownerID, now()); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("member %d: %w", userID, ErrNotFound)
				}
				return fmt.Errorf("failed to add member %d: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (db *DB) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	err := db.QueryRowContext(ctx,
		"SELECT id, name, owner_id, created_at FROM chat_groups WHERE id = ?", id,
	).Scan(&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", id, err)
	}
	return &group, nil
}

// ListUserGroups returns the groups userID is a member of, newest first.
func (db *DB) ListUserGroups(ctx context.Context, userID int64) ([]*models.Group, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT g.id, g.name, g.owner_id, g.created_at
		FROM chat_groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = ?
		ORDER BY g.created_at DESC, g.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := []*models.Group{}
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

// DeleteGroup deletes a group, its memberships and its messages. Only the owner may.
func (db *DB) DeleteGroup(ctx context.Context, groupID, actorID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if ownerID != actorID {
			return fmt.Errorf("user %d does not own group %d: %w", actorID, groupID, ErrForbidden)
		}

		stmts := []string{
			"DELETE FROM messages WHERE group_id = ?",
			"DELETE FROM group_members WHERE group_id = ?",
			"DELETE FROM chat_groups WHERE id = ?",
		}
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, groupID); err != nil {
				return fmt.Errorf("delete group %d stmt %d: %w", groupID, i, err)
			}
		}
		return nil
	})
}

// AddMember adds userID to the group on behalf of actorID, who must be the owner.
func (db *DB) AddMember(ctx context.Context, groupID, actorID, userID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if ownerID != actorID {
			return fmt.Errorf("only the owner can add members to group %d: %w", groupID, ErrForbidden)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)",
			groupID, userID, now()); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %d in group %d: %w", userID, groupID, ErrConflict)
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("user %d: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("failed to add member %d: %w", userID, err)
		}
		return nil
	})
}

// RemoveMember removes userID from the group. The owner may remove any other member
// and any member may leave; the owner itself can never be removed.
func (db *DB) RemoveMember(ctx context.Context, groupID, actorID, userID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if userID == ownerID {
			return fmt.Errorf("the owner must transfer group %d before leaving: %w", groupID, ErrForbidden)
		}
		if actorID != ownerID && actorID != userID {
			return fmt.Errorf("user %d cannot remove user %d: %w", actorID, userID, ErrForbidden)
		}

		result, err := tx.ExecContext(ctx,
			"DELETE FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove member %d: %w", userID, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("user %d in group %d: %w", userID, groupID, ErrNotFound)
		}
		return nil
	})
}

// TransferOwnership hands the group to newOwnerID, who must already be a member.
func (db *DB) TransferOwnership(ctx context.Context, groupID, actorID, newOwnerID int64) (*models.Group, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if ownerID != actorID {
			return fmt.Errorf("user %d does not own group %d: %w", actorID, groupID, ErrForbidden)
		}

		var member int
		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?",
			groupID, newOwnerID).Scan(&member)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if member == 0 {
			return fmt.Errorf("new owner %d is not a member of group %d: %w", newOwnerID, groupID, ErrInvalid)
		}

		stmts := []struct {
			query string
			args  []any
		}{
			{"UPDATE chat_groups SET owner_id = ? WHERE id = ?", []any{newOwnerID, groupID}},
			{"UPDATE group_members SET is_admin = 0 WHERE group_id = ? AND user_id = ?", []any{groupID, ownerID}},
			{"UPDATE group_members SET is_admin = 1 WHERE group_id = ? AND user_id = ?", []any{groupID, newOwnerID}},
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
				return fmt.Errorf("failed to transfer group %d: %w", groupID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetGroup(ctx, groupID)
}

func (db *DB) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// MemberIDs returns the member ids of a group in join order.
func (db *DB) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id
		FROM group_members
		WHERE group_id = ?
		ORDER BY joined_at, user_id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return ids, nil
}

func (db *DB) Members(ctx context.Context, groupID int64) ([]*models.GroupMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT gm.group_id, gm.user_id, u.username, gm.is_admin, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY gm.joined_at, gm.user_id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := []*models.GroupMember{}
	for rows.Next() {
		m := &models.GroupMember{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Username, &m.IsAdmin, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func groupOwner(ctx context.Context, tx *sql.Tx, groupID int64) (int64, error) {
	var ownerID int64
	err := tx.QueryRowContext(ctx, "SELECT owner_id FROM chat_groups WHERE id = ?", groupID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get owner of group %d: %w", groupID, err)
	}
	return ownerID, nil
}
