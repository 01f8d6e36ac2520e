package model

import "time"

// Post is a text entry owned by one user. UserID is fixed at creation.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is authored by one user on one post.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	PostID    int64     `json:"postId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reaction is a single emoji left by a user on a post.
// The (PostID, UserID, Emoji) triple is unique.
type Reaction struct {
	ID        int64     `json:"id"`
	Emoji     string    `json:"emoji"`
	PostID    int64     `json:"postId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentView is a comment with its author's display fields.
type CommentView struct {
	Comment
	AuthorUsername  string `json:"authorUsername"`
	AuthorAvatarURL string `json:"authorAvatarUrl"`
}

// ReactionView is a reaction with the reacting user's name.
type ReactionView struct {
	Reaction
	Username string `json:"username"`
}

// ReactionCount aggregates the reactions on a post by emoji.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// FeedPost is a post denormalised for rendering: author fields plus its
// nested comments and reactions. The presentation layer performs no joins.
type FeedPost struct {
	Post
	AuthorUsername  string          `json:"authorUsername"`
	AuthorAvatarURL string          `json:"authorAvatarUrl"`
	Comments        []CommentView   `json:"comments"`
	Reactions       []ReactionView  `json:"reactions"`
	ReactionCounts  []ReactionCount `json:"reactionCounts"`
}

// CountReactions groups reactions by emoji in order of first appearance.
func CountReactions(reactions []ReactionView) []ReactionCount {
	counts := []ReactionCount{}
	index := make(map[string]int)
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(counts)
			index[r.Emoji] = i
			counts = append(counts, ReactionCount{Emoji: r.Emoji})
		}
		counts[i].Count++
	}
	return counts
}
