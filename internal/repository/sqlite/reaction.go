package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

var _ repository.ReactionRepository = (*DB)(nil)

// AddReaction inserts the reaction unless the user already left the same
// emoji on the post. In both cases reaction is overwritten with the stored
// row; the bool reports whether the row is new.
func (db *DB) AddReaction(ctx context.Context, reaction *model.Reaction) (bool, error) {
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}
	reaction.CreatedAt = reaction.CreatedAt.UTC()

	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO reactions (emoji, post_id, user_id, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (post_id, user_id, emoji) DO NOTHING`,
			reaction.Emoji,
			reaction.PostID,
			reaction.UserID,
			reaction.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting reaction on post %d: %w", reaction.PostID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		created = n == 1

		err = tx.QueryRowContext(ctx,
			`SELECT id, emoji, post_id, user_id, created_at FROM reactions
			 WHERE post_id = ? AND user_id = ? AND emoji = ?`,
			reaction.PostID, reaction.UserID, reaction.Emoji,
		).Scan(&reaction.ID, &reaction.Emoji, &reaction.PostID, &reaction.UserID, &reaction.CreatedAt)
		if err != nil {
			return fmt.Errorf("sqlite: reading back reaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// ListReactions returns a post's reactions in the order they were left.
func (db *DB) ListReactions(ctx context.Context, postID int64) ([]model.ReactionView, error) {
	byPost, err := db.reactionsFor(ctx, []int64{postID})
	if err != nil {
		return nil, err
	}
	reactions := byPost[postID]
	if reactions == nil {
		reactions = []model.ReactionView{}
	}
	return reactions, nil
}

func (db *DB) reactionsFor(ctx context.Context, postIDs []int64) (map[int64][]model.ReactionView, error) {
	out := make(map[int64][]model.ReactionView, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	placeholders, args := inClause(postIDs)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.emoji, r.post_id, r.user_id, r.created_at, u.username
		 FROM reactions r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.post_id IN (`+placeholders+`)
		 ORDER BY r.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.ReactionView
		if err := rows.Scan(&r.ID, &r.Emoji, &r.PostID, &r.UserID, &r.CreatedAt, &r.Username); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reaction row: %w", err)
		}
		out[r.PostID] = append(out[r.PostID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reactions: %w", err)
	}
	return out, nil
}
