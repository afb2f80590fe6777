package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"playerhub/internal/models"
)

const gameColumns = `id, name, genre, platform, description, image_url, created_at`

func scanGame(row rowScanner) (*models.Game, error) {
	var g models.Game
	if err := row.Scan(&g.ID, &g.Name, &g.Genre, &g.Platform, &g.Description, &g.ImageURL, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (db *DB) CreateGame(ctx context.Context, req models.GameRequest) (*models.Game, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("game name is empty: %w", ErrInvalid)
	}

	createdAt := now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO games (name, genre, platform, description, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, req.Name, req.Genre, req.Platform, req.Description, req.ImageURL, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("game %q: %w", req.Name, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get game ID: %w", err)
	}

	return &models.Game{
		ID:          id,
		Name:        req.Name,
		Genre:       req.Genre,
		Platform:    req.Platform,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CreatedAt:   createdAt,
	}, nil
}

func (db *DB) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	game, err := scanGame(db.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return game, nil
}

// ListGames searches the catalog by name and genre. Prefix matches rank before
// substring matches.
func (db *DB) ListGames(ctx context.Context, f models.GameFilter) (*models.Page[*models.Game], error) {
	limit, offset := clampPage(f.Limit, f.Offset, 20, 100)

	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		where = append(where, `name LIKE ? COLLATE NOCASE ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}
	if f.Genre != "" {
		where = append(where, "genre = ? COLLATE NOCASE")
		args = append(args, f.Genre)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count games: %w", err)
	}

	query := "SELECT " + gameColumns + " FROM games" + clause + " ORDER BY "
	if f.Search != "" {
		query += `CASE WHEN name LIKE ? COLLATE NOCASE ESCAPE '\' THEN 0 ELSE 1 END, `
		args = append(args, escapeLike(f.Search)+"%")
	}
	query += "name COLLATE NOCASE LIMIT ? OFFSET ?"

	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search games: %w", err)
	}
	defer rows.Close()

	games := []*models.Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return &models.Page[*models.Game]{Results: games, Total: total, Limit: limit, Offset: offset}, nil
}

func (db *DB) UpdateGame(ctx context.Context, id int64, req models.GameRequest) (*models.Game, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("game name is empty: %w", ErrInvalid)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE games SET name = ?, genre = ?, platform = ?, description = ?, image_url = ?
		WHERE id = ?
	`, req.Name, req.Genre, req.Platform, req.Description, req.ImageURL, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("game %q: %w", req.Name, ErrConflict)
		}
		return nil, fmt.Errorf("failed to update game %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return db.GetGame(ctx, id)
}

func (db *DB) DeleteGame(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return nil
}
