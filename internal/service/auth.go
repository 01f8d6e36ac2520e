// Package service — account and session business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Register and authenticate username/password accounts
//   - Sign in (and sign up) through GitHub OAuth when it is configured
//   - Issue the session token for every successful sign-in
//
// Unknown usernames, wrong passwords and password-less accounts all fail
// with the same apperror.ErrInvalidCredentials, and all three cost one
// bcrypt comparison.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// AuthService handles registration, sign-in and profile updates.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → sign/verify session tokens
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - policy     Policy                     → input validation switches
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	policy    Policy
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	policy Policy,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		policy:    policy,
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations.
// It bundles the user record, its session and the signed token so the
// caller (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// Register creates a password account and signs it in.
//
// Usernames are case-sensitive; an exact duplicate fails with
// apperror.ErrUsernameTaken. The new account gets the default avatar.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	if err := s.policy.validateCredentials(username, password); err != nil {
		metrics.RecordAuth("register", false)
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		AvatarURL:    model.DefaultAvatarURL,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		metrics.RecordAuth("register", false)
		if errors.Is(err, apperror.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	metrics.RecordAuth("register", true)
	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Authenticate checks a username and password and returns a new session.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
		}
		s.passwords.Waste(password)
		return nil, s.rejectLogin(username, "unknown user")
	}

	if user.PasswordHash == "" {
		s.passwords.Waste(password)
		return nil, s.rejectLogin(username, "account has no password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, fmt.Errorf("service/auth: verifying password of %q: %w", username, err)
		}
		return nil, s.rejectLogin(username, "wrong password")
	}

	metrics.RecordAuth("login", true)
	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return s.issue(user)
}

// rejectLogin logs the real reason and returns the uniform error.
func (s *AuthService) rejectLogin(username, reason string) error {
	metrics.RecordAuth("login", false)
	s.logger.Debug("login rejected",
		slog.String("username", username),
		slog.String("reason", reason),
	)
	return apperror.InvalidCredentials()
}

// LoginWithGitHub handles the GitHub OAuth callback after the handler has
// exchanged the code for a profile.
//
//  1. A user already linked to the GitHub id is signed in.
//  2. Otherwise a new account named after the GitHub login is created with
//     the GitHub avatar and no password.
//  3. If that username belongs to an existing account, sign-in fails with
//     apperror.ErrUsernameTaken; accounts are never merged implicitly.
func (s *AuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	if err == nil {
		metrics.RecordAuth("github", true)
		s.logger.Info("user authenticated via GitHub",
			slog.Int64("userID", user.ID),
			slog.String("login", ghUser.Login),
		)
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up GitHub account %d: %w", ghUser.ID, err)
	}

	githubID := ghUser.ID
	user = &model.User{
		Username:  ghUser.Login,
		AvatarURL: ghUser.AvatarURL,
		GitHubID:  &githubID,
	}
	if user.AvatarURL == "" {
		user.AvatarURL = model.DefaultAvatarURL
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		metrics.RecordAuth("github", false)
		if errors.Is(err, apperror.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating GitHub user %q: %w", ghUser.Login, err)
	}

	metrics.RecordAuth("github", true)
	s.logger.Info("user registered via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", ghUser.Login),
	)

	return s.issue(user)
}

// UpdateAvatar replaces the caller's avatar reference and returns a fresh
// session carrying it.
func (s *AuthService) UpdateAvatar(ctx context.Context, sess *model.Session, avatarURL string) (*AuthResult, error) {
	if sess == nil {
		return nil, apperror.Unauthenticated()
	}
	if avatarURL == "" {
		return nil, apperror.ValidationFailed("avatar", "avatar must not be empty")
	}

	if err := s.users.UpdateAvatar(ctx, sess.UserID, avatarURL); err != nil {
		return nil, fmt.Errorf("service/auth: updating avatar of user %d: %w", sess.UserID, err)
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: reloading user %d: %w", sess.UserID, err)
	}

	s.logger.Info("avatar updated", slog.Int64("userID", user.ID))
	return s.issue(user)
}

// Me returns the full record of the signed-in user.
func (s *AuthService) Me(ctx context.Context, sess *model.Session) (*model.User, error) {
	if sess == nil {
		return nil, apperror.Unauthenticated()
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", sess.UserID, err)
	}
	return user, nil
}

// EnsureUser creates a password account unless the username exists. It
// reports whether an account was created. The init-db command seeds the
// admin account with it.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return false, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if _, err := s.Register(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

// ParseSession validates a session token and returns the session it
// encodes.
func (s *AuthService) ParseSession(token string) (*model.Session, error) {
	sess, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return sess, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	sess := model.SessionFor(user)
	token, err := s.tokens.Generate(sess)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Session: sess, Token: token}, nil
}
