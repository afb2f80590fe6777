package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"playerhub/internal/models"
)

const userColumns = `id, username, password, language, region, profile_picture, games,
	current_game, current_game_id, last_active, is_admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user       models.User
		games      string
		lastActive sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Language, &user.Region,
		&user.ProfilePicture, &games, &user.CurrentGame, &user.CurrentGameID, &lastActive,
		&user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(games), &user.Games); err != nil {
		return nil, fmt.Errorf("failed to decode games of user %d: %w", user.ID, err)
	}
	if user.Games == nil {
		user.Games = []string{}
	}
	user.LastActive = nullTime(lastActive)
	return &user, nil
}

// User methods
func (db *DB) CreateUser(ctx context.Context, username, passwordHash, language, region string) (*models.User, error) {
	createdAt := now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO users (username, password, language, region, last_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, username, passwordHash, language, region, createdAt, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", username, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return &models.User{
		ID:         id,
		Username:   username,
		Password:   passwordHash,
		Language:   language,
		Region:     region,
		Games:      []string{},
		LastActive: &createdAt,
		CreatedAt:  createdAt,
	}, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return user, nil
}

// ListUsers browses players. Search is a case-insensitive substring match on the
// username; Game matches any entry of the played games or the current game.
func (db *DB) ListUsers(ctx context.Context, f models.UserFilter) (*models.Page[*models.User], error) {
	limit, offset := clampPage(f.Limit, f.Offset, 20, 100)

	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		where = append(where, `username LIKE ? COLLATE NOCASE ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}
	if f.Language != "" {
		where = append(where, "language = ?")
		args = append(args, f.Language)
	}
	if f.Region != "" {
		where = append(where, "region = ?")
		args = append(args, f.Region)
	}
	if f.Game != "" {
		where = append(where, "(current_game = ? OR EXISTS (SELECT 1 FROM json_each(users.games) WHERE json_each.value = ?))")
		args = append(args, f.Game, f.Game)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+clause+" ORDER BY last_active DESC, username LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &models.Page[*models.User]{Results: users, Total: total, Limit: limit, Offset: offset}, nil
}

// UpdateUser applies the non-nil fields of req. The username is immutable.
func (db *DB) UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error) {
	var (
		sets []string
		args []any
	)
	if req.Language != nil {
		sets = append(sets, "language = ?")
		args = append(args, *req.Language)
	}
	if req.Region != nil {
		sets = append(sets, "region = ?")
		args = append(args, *req.Region)
	}
	if req.ProfilePicture != nil {
		sets = append(sets, "profile_picture = ?")
		args = append(args, *req.ProfilePicture)
	}
	if req.Games != nil {
		games := dedupe(*req.Games)
		encoded, err := json.Marshal(games)
		if err != nil {
			return nil, fmt.Errorf("failed to encode games: %w", err)
		}
		sets = append(sets, "games = ?")
		args = append(args, string(encoded))
	}
	if req.CurrentGame != nil {
		sets = append(sets, "current_game = ?")
		args = append(args, *req.CurrentGame)
	}
	if req.CurrentGameID != nil {
		sets = append(sets, "current_game_id = ?")
		args = append(args, *req.CurrentGameID)
	}

	if len(sets) > 0 {
		result, err := db.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", append(args, id)...)
		if err != nil {
			return nil, fmt.Errorf("failed to update user %d: %w", id, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
	}

	return db.GetUserByID(ctx, id)
}

func (db *DB) TouchLastActive(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, "UPDATE users SET last_active = ? WHERE id = ?", now(), id); err != nil {
		return fmt.Errorf("failed to touch user %d: %w", id, err)
	}
	return nil
}

func (db *DB) SetAdmin(ctx context.Context, id int64, admin bool) error {
	result, err := db.ExecContext(ctx, "UPDATE users SET is_admin = ? WHERE id = ?", admin, id)
	if err != nil {
		return fmt.Errorf("failed to update admin flag of user %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) IsAdmin(ctx context.Context, id int64) (bool, error) {
	var admin bool
	err := db.QueryRowContext(ctx, "SELECT is_admin FROM users WHERE id = ?", id).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read admin flag of user %d: %w", id, err)
	}
	return admin, nil
}

// DeleteUser removes the user with everything they own: sent and received
// messages, owned groups (their members and messages), memberships, ideas and votes.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM messages WHERE group_id IN (SELECT id FROM chat_groups WHERE owner_id = ?)`,
			`DELETE FROM group_members WHERE group_id IN (SELECT id FROM chat_groups WHERE owner_id = ?)`,
			`DELETE FROM chat_groups WHERE owner_id = ?`,
			`DELETE FROM messages WHERE sender_id = ? OR recipient_id = ?`,
			`DELETE FROM group_members WHERE user_id = ?`,
			`UPDATE ideas SET votes = votes - 1 WHERE id IN (SELECT idea_id FROM idea_votes WHERE user_id = ?)`,
			`DELETE FROM idea_votes WHERE user_id = ?`,
			`DELETE FROM ideas WHERE author_id = ?`,
		}
		for i, stmt := range stmts {
			args := []any{id}
			if strings.Count(stmt, "?") == 2 {
				args = append(args, id)
			}
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("delete user %d stmt %d: %w", id, i, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// ActiveSince counts users whose last activity is after t.
func (db *DB) ActiveSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE last_active > ?", t.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
