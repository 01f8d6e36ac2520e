// Package repository declares the storage contracts the services depend on.
// internal/repository/sqlite provides the implementation.
package repository

import (
	"context"

	"github.com/sakif/microblog/internal/model"
)

// ListOptions pages a listing. Implementations apply Limit as given; a
// Limit of zero or less means no limit. Callers choose page sizes.
type ListOptions struct {
	Limit  int
	Offset int
}

// FeedQuery selects and pages the posts of a feed. An empty AuthorIDs and
// empty Search select every post.
type FeedQuery struct {
	AuthorIDs []int64
	Search    string
	ListOptions
}

type UserRepository interface {
	// CreateUser inserts the user. It fails with apperror.ErrUsernameTaken
	// when the username already exists; the check and the insert share a
	// transaction.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	// DeletePost removes the post with its comments and reactions in one
	// transaction.
	DeletePost(ctx context.Context, id int64) error
	ListFeed(ctx context.Context, q FeedQuery) ([]model.FeedPost, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID int64) ([]model.CommentView, error)
}

type ReactionRepository interface {
	// AddReaction stores the reaction unless the same (post, user, emoji)
	// triple exists. It fills reaction with the stored row and reports
	// whether a new row was inserted.
	AddReaction(ctx context.Context, reaction *model.Reaction) (bool, error)
	ListReactions(ctx context.Context, postID int64) ([]model.ReactionView, error)
}

// Store is everything the content services need from storage.
type Store interface {
	UserRepository
	PostRepository
	CommentRepository
	ReactionRepository
}
