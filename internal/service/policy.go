package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
)

// Field limits. Title, username and emoji lengths are counted in
// characters, content in bytes.
const (
	MaxTitleLength    = 200
	MaxContentBytes   = 50000
	MaxUsernameLength = 50
	MaxEmojiLength    = 10
)

// Policy holds the validation switches applied to user input.
//
// EnforceNonEmpty rejects empty or whitespace-only usernames, passwords,
// titles, contents and comments. When false those fields may be empty;
// the length limits apply either way.
type Policy struct {
	EnforceNonEmpty bool
}

// DefaultPolicy enforces non-empty fields.
func DefaultPolicy() Policy {
	return Policy{EnforceNonEmpty: true}
}

func (p Policy) requireText(field, value string) error {
	if p.EnforceNonEmpty && strings.TrimSpace(value) == "" {
		return apperror.ValidationFailed(field, field+" must not be empty")
	}
	return nil
}

func (p Policy) validateCredentials(username, password string) error {
	if err := p.requireText("username", username); err != nil {
		return err
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}
	if err := p.requireText("password", password); err != nil {
		return err
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}

func (p Policy) validatePost(title, content string) error {
	if err := p.requireText("title", title); err != nil {
		return err
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	}
	if err := p.requireText("content", content); err != nil {
		return err
	}
	return checkContentSize("content", content)
}

func (p Policy) validateComment(content string) error {
	if err := p.requireText("comment", content); err != nil {
		return err
	}
	return checkContentSize("comment", content)
}

// normalizeEmoji trims the label and checks it. An emoji is required
// whatever the policy says: it is part of the reaction's identity.
func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", apperror.ValidationFailed("emoji", "emoji must not be empty")
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return "", apperror.ValidationFailed("emoji",
			fmt.Sprintf("emoji must be %d characters or fewer", MaxEmojiLength))
	}
	return emoji, nil
}

func checkContentSize(field, value string) error {
	if len(value) > MaxContentBytes {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d bytes or fewer", field, MaxContentBytes))
	}
	return nil
}
