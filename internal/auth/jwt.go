// Package auth issues and verifies session tokens, hashes passwords, and
// provides the HTTP middleware that turns a session cookie into a
// *model.Session on the request context.
//
// SESSION TOKENS:
// A session is a signed JWT (HS256) stored in the HttpOnly "token" cookie.
// The claims carry everything the application needs to know about the
// caller without a database lookup:
//
//	sub    → user id (decimal string)
//	name   → username
//	avatar → avatar reference
//	iss    → "microblog"
//	exp    → issue time + TTL
//
// Logging out deletes the cookie. There is no server-side session table.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/microblog/internal/model"
)

const issuer = "microblog"

// DefaultSessionTTL is used when NewTokenService is given a zero TTL.
const DefaultSessionTTL = 24 * time.Hour

// TokenService handles session token creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given HMAC secret and
// session lifetime. The secret must be at least 16 characters.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime of issued tokens. Handlers use it for the
// cookie MaxAge so the cookie and the token expire together.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}

// Generate signs a token for the session with the service's TTL.
func (s *TokenService) Generate(sess *model.Session) (string, error) {
	return s.GenerateWithDuration(sess, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to produce an already-expired token.
func (s *TokenService) GenerateWithDuration(sess *model.Session, d time.Duration) (string, error) {
	if sess == nil || sess.UserID <= 0 {
		return "", errors.New("auth: cannot sign a token without a user")
	}

	now := time.Now()
	c := claims{
		Name:   sess.Username,
		Avatar: sess.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sess.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token and returns the session it encodes.
//
// The signature, the HS256 algorithm, the issuer and the expiry are all
// checked by the jwt library. Tokens signed with "none" or an asymmetric
// algorithm are rejected by WithValidMethods.
func (s *TokenService) Validate(tokenStr string) (*model.Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("auth: token has no valid subject")
	}

	return &model.Session{
		UserID:    userID,
		Username:  c.Name,
		AvatarURL: c.Avatar,
	}, nil
}
