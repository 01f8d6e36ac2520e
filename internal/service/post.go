package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Feed page bounds. The repository clamps to the same values.
const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// FeedKind selects which posts a feed shows.
type FeedKind string

const (
	FeedAll     FeedKind = "all"
	FeedMine    FeedKind = "mine"
	FeedAuthors FeedKind = "authors"
	FeedSearch  FeedKind = "search"
)

// FeedFilter describes one feed page.
//
// AuthorIDs is read for FeedAuthors, Query for FeedSearch. A zero Kind
// means FeedAll.
type FeedFilter struct {
	Kind      FeedKind
	AuthorIDs []int64
	Query     string
	Limit     int
	Offset    int
}

// PostService enforces the content rules: who may create, change and
// remove posts, comments and reactions.
//
// EVERY OPERATION TAKES A SESSION:
// The caller's identity is an explicit *model.Session argument. A nil
// session is an anonymous caller and fails with ErrUnauthenticated before
// any other check runs. Nothing here reads a global "current user".
//
// CHECK ORDER for edit and delete:
//
//	session → post exists → caller owns it → input is valid
//
// so an anonymous caller learns nothing about which posts exist, and a
// non-owner gets ErrForbidden even for an invalid edit.
type PostService struct {
	store  repository.Store
	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

func NewPostService(store repository.Store, policy Policy, logger *slog.Logger) *PostService {
	return &PostService{
		store:  store,
		policy: policy,
		now:    time.Now,
		logger: logger,
	}
}

// requireSession is the authentication gate shared by every operation.
func requireSession(sess *model.Session, operation string) error {
	if sess == nil {
		metrics.RecordDenied(operation, "unauthenticated")
		return apperror.Unauthenticated()
	}
	return nil
}

// CreatePost stores a new post owned by the caller. The timestamp comes
// from the service clock, never from the client.
func (s *PostService) CreatePost(ctx context.Context, sess *model.Session, title, content string) (*model.Post, error) {
	if err := requireSession(sess, "create_post"); err != nil {
		return nil, err
	}
	if err := s.policy.validatePost(title, content); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:     title,
		Content:   content,
		UserID:    sess.UserID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	metrics.RecordPost("create")
	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.Int64("userID", sess.UserID),
	)
	return post, nil
}

// GetPost returns one post in feed form: author fields, comments and
// reactions attached.
func (s *PostService) GetPost(ctx context.Context, sess *model.Session, id int64) (*model.FeedPost, error) {
	if err := requireSession(sess, "get_post"); err != nil {
		return nil, err
	}

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, wrapLookup("service/post: getting post", id, err)
	}

	author, err := s.store.GetUserByID(ctx, post.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading author of post %d: %w", id, err)
	}
	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading comments of post %d: %w", id, err)
	}
	reactions, err := s.store.ListReactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading reactions of post %d: %w", id, err)
	}

	return &model.FeedPost{
		Post:            *post,
		AuthorUsername:  author.Username,
		AuthorAvatarURL: author.AvatarURL,
		Comments:        comments,
		Reactions:       reactions,
		ReactionCounts:  model.CountReactions(reactions),
	}, nil
}

// EditPost replaces the title and content of the caller's own post.
// The owner and creation time stay as they were.
func (s *PostService) EditPost(ctx context.Context, sess *model.Session, id int64, title, content string) (*model.Post, error) {
	post, err := s.ownedPost(ctx, sess, id, "edit_post")
	if err != nil {
		return nil, err
	}
	if err := s.policy.validatePost(title, content); err != nil {
		return nil, err
	}

	post.Title = title
	post.Content = content
	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: updating post %d: %w", id, err)
	}

	metrics.RecordPost("edit")
	s.logger.Info("post edited", slog.Int64("postID", id), slog.Int64("userID", sess.UserID))
	return post, nil
}

// DeletePost removes the caller's own post together with its comments and
// reactions. The repository does all three deletes in one transaction.
func (s *PostService) DeletePost(ctx context.Context, sess *model.Session, id int64) error {
	if _, err := s.ownedPost(ctx, sess, id, "delete_post"); err != nil {
		return err
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		return wrapLookup("service/post: deleting post", id, err)
	}

	metrics.RecordPost("delete")
	s.logger.Info("post deleted", slog.Int64("postID", id), slog.Int64("userID", sess.UserID))
	return nil
}

// ownedPost runs the session, existence and ownership checks in that order.
func (s *PostService) ownedPost(ctx context.Context, sess *model.Session, id int64, operation string) (*model.Post, error) {
	if err := requireSession(sess, operation); err != nil {
		return nil, err
	}

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, wrapLookup("service/post: getting post", id, err)
	}

	if post.UserID != sess.UserID {
		metrics.RecordDenied(operation, "forbidden")
		s.logger.Warn("ownership check failed",
			slog.String("operation", operation),
			slog.Int64("postID", id),
			slog.Int64("userID", sess.UserID),
		)
		return nil, apperror.Forbidden("you can only change your own posts")
	}
	return post, nil
}

// AddComment attaches a comment by the caller to any existing post.
func (s *PostService) AddComment(ctx context.Context, sess *model.Session, postID int64, content string) (*model.Comment, error) {
	if err := requireSession(sess, "add_comment"); err != nil {
		return nil, err
	}
	if err := s.policy.validateComment(content); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, wrapLookup("service/post: getting post", postID, err)
	}

	comment := &model.Comment{
		Content:   content,
		PostID:    postID,
		UserID:    sess.UserID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/post: adding comment to post %d: %w", postID, err)
	}

	metrics.RecordComment()
	s.logger.Info("comment added",
		slog.Int64("commentID", comment.ID),
		slog.Int64("postID", postID),
		slog.Int64("userID", sess.UserID),
	)
	return comment, nil
}

// AddReaction records an emoji reaction by the caller.
//
// Reacting twice with the same emoji is a no-op: the existing reaction is
// returned and created is false. Different emojis from the same user are
// separate reactions.
func (s *PostService) AddReaction(ctx context.Context, sess *model.Session, postID int64, emoji string) (reaction *model.Reaction, created bool, err error) {
	if err := requireSession(sess, "add_reaction"); err != nil {
		return nil, false, err
	}
	emoji, err = normalizeEmoji(emoji)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, false, wrapLookup("service/post: getting post", postID, err)
	}

	reaction = &model.Reaction{
		Emoji:     emoji,
		PostID:    postID,
		UserID:    sess.UserID,
		CreatedAt: s.now(),
	}
	created, err = s.store.AddReaction(ctx, reaction)
	if err != nil {
		return nil, false, fmt.Errorf("service/post: adding reaction to post %d: %w", postID, err)
	}

	metrics.RecordReaction(created)
	s.logger.Info("reaction added",
		slog.Int64("postID", postID),
		slog.Int64("userID", sess.UserID),
		slog.String("emoji", emoji),
		slog.Bool("created", created),
	)
	return reaction, created, nil
}

// ListFeed returns one page of posts, newest first, with author fields,
// comments and reactions attached.
func (s *PostService) ListFeed(ctx context.Context, sess *model.Session, filter FeedFilter) ([]model.FeedPost, error) {
	if err := requireSession(sess, "list_feed"); err != nil {
		return nil, err
	}

	q, err := feedQuery(sess, filter)
	if err != nil {
		return nil, err
	}

	posts, err := s.store.ListFeed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing feed: %w", err)
	}
	return posts, nil
}

// feedQuery validates a filter and turns it into a repository query.
func feedQuery(sess *model.Session, f FeedFilter) (repository.FeedQuery, error) {
	var q repository.FeedQuery

	if f.Limit < 0 {
		return q, apperror.ValidationFailed("limit", "limit must not be negative")
	}
	if f.Offset < 0 {
		return q, apperror.ValidationFailed("offset", "offset must not be negative")
	}
	q.Limit = f.Limit
	if q.Limit == 0 {
		q.Limit = DefaultFeedLimit
	}
	if q.Limit > MaxFeedLimit {
		q.Limit = MaxFeedLimit
	}
	q.Offset = f.Offset

	switch f.Kind {
	case "", FeedAll:
	case FeedMine:
		q.AuthorIDs = []int64{sess.UserID}
	case FeedAuthors:
		if len(f.AuthorIDs) == 0 {
			return q, apperror.ValidationFailed("authors", "select at least one author")
		}
		q.AuthorIDs = f.AuthorIDs
	case FeedSearch:
		if strings.TrimSpace(f.Query) == "" {
			return q, apperror.ValidationFailed("q", "search query must not be empty")
		}
		q.Search = f.Query
	default:
		return q, apperror.ValidationFailed("tab", fmt.Sprintf("unknown feed %q", f.Kind))
	}
	return q, nil
}

// wrapLookup passes not-found errors through unchanged so their message
// reaches the client, and wraps everything else.
func wrapLookup(op string, id int64, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}
