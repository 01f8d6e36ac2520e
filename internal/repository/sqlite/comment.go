package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	comment.CreatedAt = comment.CreatedAt.UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (content, post_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		comment.Content,
		comment.PostID,
		comment.UserID,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on post %d: %w", comment.PostID, err)
	}

	comment.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading comment id: %w", err)
	}
	return nil
}

// ListComments returns a post's comments oldest first.
func (db *DB) ListComments(ctx context.Context, postID int64) ([]model.CommentView, error) {
	byPost, err := db.commentsFor(ctx, []int64{postID})
	if err != nil {
		return nil, err
	}
	comments := byPost[postID]
	if comments == nil {
		comments = []model.CommentView{}
	}
	return comments, nil
}

// commentsFor loads the comments of several posts in one query, grouped by
// post id.
func (db *DB) commentsFor(ctx context.Context, postIDs []int64) (map[int64][]model.CommentView, error) {
	out := make(map[int64][]model.CommentView, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	placeholders, args := inClause(postIDs)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.content, c.post_id, c.user_id, c.created_at, u.username, u.avatar_url
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.post_id IN (`+placeholders+`)
		 ORDER BY c.created_at ASC, c.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.CommentView
		if err := rows.Scan(
			&c.ID, &c.Content, &c.PostID, &c.UserID, &c.CreatedAt,
			&c.AuthorUsername, &c.AuthorAvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		out[c.PostID] = append(out[c.PostID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return out, nil
}
