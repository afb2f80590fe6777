package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"playerhub/internal/models"
)

// Idea sort orders accepted by ListIdeas.
const (
	SortTop    = "top"
	SortNewest = "newest"
)

func (db *DB) CreateIdea(ctx context.Context, authorID int64, req models.IdeaRequest) (*models.Idea, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("idea title is empty: %w", ErrInvalid)
	}

	createdAt := now()
	result, err := db.ExecContext(ctx,
		"INSERT INTO ideas (author_id, title, description, created_at) VALUES (?, ?, ?, ?)",
		authorID, req.Title, req.Description, createdAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("author %d: %w", authorID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create idea: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get idea ID: %w", err)
	}

	return &models.Idea{
		ID:          id,
		AuthorID:    authorID,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   createdAt,
	}, nil
}

// ListIdeas returns ideas sorted by votes (SortTop) or creation time, with Voted set
// for viewerID.
func (db *DB) ListIdeas(ctx context.Context, viewerID int64, sort string, limit, offset int) (*models.Page[*models.Idea], error) {
	limit, offset = clampPage(limit, offset, 20, 100)

	order := "i.votes DESC, i.created_at DESC, i.id DESC"
	if sort == SortNewest {
		order = "i.created_at DESC, i.id DESC"
	}

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ideas").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count ideas: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT i.id, i.author_id, i.title, i.description, i.votes, i.created_at,
			EXISTS (SELECT 1 FROM idea_votes v WHERE v.idea_id = i.id AND v.user_id = ?)
		FROM ideas i
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, viewerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ideas: %w", err)
	}
	defer rows.Close()

	ideas := []*models.Idea{}
	for rows.Next() {
		idea := &models.Idea{}
		if err := rows.Scan(&idea.ID, &idea.AuthorID, &idea.Title, &idea.Description,
			&idea.Votes, &idea.CreatedAt, &idea.Voted); err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ideas: %w", err)
	}

	return &models.Page[*models.Idea]{Results: ideas, Total: total, Limit: limit, Offset: offset}, nil
}

// ToggleVote removes userID's vote on the idea if present and adds it otherwise,
// keeping the denormalised vote counter in step within one transaction.
func (db *DB) ToggleVote(ctx context.Context, ideaID, userID int64) (*models.VoteResponse, error) {
	resp := &models.VoteResponse{IdeaID: ideaID}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM ideas WHERE id = ?", ideaID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check idea %d: %w", ideaID, err)
		}
		if exists == 0 {
			return fmt.Errorf("idea %d: %w", ideaID, ErrNotFound)
		}

		result, err := tx.ExecContext(ctx,
			"DELETE FROM idea_votes WHERE idea_id = ? AND user_id = ?", ideaID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove vote: %w", err)
		}

		delta := -1
		if n, _ := result.RowsAffected(); n == 0 {
			delta = 1
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO idea_votes (idea_id, user_id, created_at) VALUES (?, ?, ?)",
				ideaID, userID, now()); err != nil {
				return fmt.Errorf("failed to add vote: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE ideas SET votes = votes + ? WHERE id = ?", delta, ideaID); err != nil {
			return fmt.Errorf("failed to update vote count: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT votes FROM ideas WHERE id = ?", ideaID).Scan(&resp.Votes); err != nil {
			return fmt.Errorf("failed to read vote count: %w", err)
		}
		resp.Voted = delta > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DeleteIdea removes an idea on behalf of its author, or anyone when asAdmin is set.
func (db *DB) DeleteIdea(ctx context.Context, ideaID, actorID int64, asAdmin bool) error {
	var authorID int64
	err := db.QueryRowContext(ctx, "SELECT author_id FROM ideas WHERE id = ?", ideaID).Scan(&authorID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("idea %d: %w", ideaID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get idea %d: %w", ideaID, err)
	}
	if authorID != actorID && !asAdmin {
		return fmt.Errorf("user %d cannot delete idea %d: %w", actorID, ideaID, ErrForbidden)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM ideas WHERE id = ?", ideaID); err != nil {
		return fmt.Errorf("failed to delete idea %d: %w", ideaID, err)
	}
	return nil
}
