// Package model defines the data structures used throughout the application.
package model

import "time"

// DefaultAvatarURL is the avatar reference assigned to new accounts until
// they upload their own picture.
const DefaultAvatarURL = "https://i.pravatar.cc/150?img=3"

// User represents a registered account.
//
// PasswordHash is never serialised. Accounts created through GitHub sign-in
// have an empty hash and cannot log in with a password; GitHubID is nil for
// accounts that were created with a username and password.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl"`
	GitHubID     *int64    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session is the identity carried by an authenticated request.
//
// It is passed explicitly into every service operation. A nil *Session
// means the caller is anonymous.
type Session struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// SessionFor builds the session for a user record.
func SessionFor(u *User) *Session {
	return &Session{
		UserID:    u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}
