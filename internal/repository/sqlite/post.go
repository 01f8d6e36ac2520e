package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// CreatePost inserts a post. CreatedAt is kept when the caller set it (the
// service assigns it from its clock) and defaults to now otherwise.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.CreatedAt

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (title, content, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		post.Title,
		post.Content,
		post.UserID,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	post.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post id: %w", err)
	}
	return nil
}

// GetPost returns apperror.ErrNotFound when the post does not exist.
func (db *DB) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, content, user_id, created_at, updated_at
		 FROM posts WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Title, &p.Content, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return &p, nil
}

// UpdatePost writes title and content. The owner and created_at columns are
// not part of the statement, so they cannot change.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		post.Title,
		post.Content,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes the post's reactions, its comments and the post in a
// single transaction. Either all three go or nothing does.
//
// The foreign keys also cascade, but the explicit deletes keep the
// behaviour independent of the foreign_keys pragma.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE post_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting reactions of post %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting comments of post %d: %w", id, err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			// rolls back the child deletes, which matched nothing anyway
			return apperror.NotFound("post", id)
		}
		return nil
	})
}
