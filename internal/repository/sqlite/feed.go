package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// ListFeed returns one page of posts, newest first, each with its author,
// comments and reactions attached.
//
// Posts with the same created_at are ordered by id descending so paging is
// stable. Comments and reactions are fetched with one query each for the
// whole page.
func (db *DB) ListFeed(ctx context.Context, q repository.FeedQuery) ([]model.FeedPost, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	if len(q.AuthorIDs) > 0 {
		placeholders, idArgs := inClause(q.AuthorIDs)
		where = append(where, "p.user_id IN ("+placeholders+")")
		args = append(args, idArgs...)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(instr(lower(p.title), lower(?)) > 0 OR instr(lower(p.content), lower(?)) > 0)")
		args = append(args, s, s)
	}

	query := `SELECT p.id, p.title, p.content, p.user_id, p.created_at, p.updated_at, u.username, u.avatar_url
		FROM posts p
		JOIN users u ON u.id = p.user_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	posts, err := db.queryFeedPosts(ctx, query, args, limit)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}

	comments, err := db.commentsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	reactions, err := db.reactionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		p := &posts[i]
		p.Comments = comments[p.ID]
		if p.Comments == nil {
			p.Comments = []model.CommentView{}
		}
		p.Reactions = reactions[p.ID]
		if p.Reactions == nil {
			p.Reactions = []model.ReactionView{}
		}
		p.ReactionCounts = model.CountReactions(p.Reactions)
	}

	return posts, nil
}

// queryFeedPosts runs the post query and closes its rows before returning,
// which the single-connection pool requires before the next query.
func (db *DB) queryFeedPosts(ctx context.Context, query string, args []any, limit int) ([]model.FeedPost, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing feed: %w", err)
	}
	defer rows.Close()

	posts := make([]model.FeedPost, 0, max(limit, 0))
	for rows.Next() {
		var p model.FeedPost
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Content, &p.UserID, &p.CreatedAt, &p.UpdatedAt,
			&p.AuthorUsername, &p.AuthorAvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning feed row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating feed: %w", err)
	}
	return posts, nil
}

// inClause returns "?, ?, ?" and the matching arguments.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
