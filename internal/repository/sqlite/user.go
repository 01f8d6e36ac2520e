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

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, password_hash, avatar_url, github_id, created_at, updated_at`

// CreateUser inserts a user after checking that the username is free.
//
// The lookup and the insert run in one transaction. The UNIQUE index on
// username is the final guard; a violation maps to ErrUsernameTaken too.
// Usernames compare case-sensitively.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.AvatarURL == "" {
		user.AvatarURL = model.DefaultAvatarURL
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.CreatedAt

	var githubID sql.NullInt64
	if user.GitHubID != nil {
		githubID = sql.NullInt64{Int64: *user.GitHubID, Valid: true}
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE username = ?`, user.Username,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("sqlite: checking username %q: %w", user.Username, err)
		}
		if exists > 0 {
			return apperror.UsernameTaken(user.Username)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, avatar_url, github_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.Username,
			user.PasswordHash,
			user.AvatarURL,
			githubID,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.UsernameTaken(user.Username)
			}
			return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
		}

		user.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading user id: %w", err)
		}
		return nil
	})
}

// GetUserByID returns apperror.ErrNotFound when no user has that id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername matches the username exactly.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: fmt.Sprintf("user %q not found", username),
			}
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: fmt.Sprintf("no user linked to GitHub account %d", githubID),
			}
		}
		return nil, fmt.Errorf("sqlite: getting user by github id %d: %w", githubID, err)
	}
	return u, nil
}

// UpdateAvatar replaces the avatar reference. Nothing else on the row changes
// apart from updated_at.
func (db *DB) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?`,
		avatarURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating avatar of user %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.AvatarURL,
		&githubID,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}
