package db

import (
	"context"
	"fmt"
	"time"

	"playerhub/internal/models"
)

// Stats aggregates the admin dashboard counters. Users count as active when their
// last activity falls within activeWindow.
func (db *DB) Stats(ctx context.Context, activeWindow time.Duration) (*models.Stats, error) {
	var stats models.Stats
	counters := []struct {
		query string
		args  []any
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM users", nil, &stats.Users},
		{"SELECT COUNT(*) FROM messages", nil, &stats.Messages},
		{"SELECT COUNT(*) FROM messages WHERE created_at > ?", []any{now().Add(-24 * time.Hour)}, &stats.MessagesLast24},
		{"SELECT COUNT(*) FROM chat_groups", nil, &stats.Groups},
		{"SELECT COUNT(*) FROM games", nil, &stats.Games},
		{"SELECT COUNT(*) FROM ideas", nil, &stats.Ideas},
	}
	for _, c := range counters {
		if err := db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to run %q: %w", c.query, err)
		}
	}

	active, err := db.ActiveSince(ctx, now().Add(-activeWindow))
	if err != nil {
		return nil, err
	}
	stats.ActiveUsers = active
	return &stats, nil
}
