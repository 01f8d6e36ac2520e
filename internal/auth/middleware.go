package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/microblog/internal/model"
)

// CookieName is the HttpOnly cookie holding the session token.
const CookieName = "token"

// contextKey is unexported so only this package can read or write the
// session stored on a request context.
type contextKey string

const sessionKey contextKey = "session"

// RequireSession enforces authentication on protected routes.
//
// It decodes the session cookie and stores the *model.Session in the
// request context. Anonymous requests are handed to deny instead of next;
// the API denies with a JSON 401, the web routes redirect to /login.
func RequireSession(tokens *TokenService, deny http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessionFromCookie(r, tokens)
			if err != nil {
				deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalSession attaches the session when a valid cookie is present and
// never blocks the request.
func OptionalSession(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, err := sessionFromCookie(r, tokens); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DenyJSON is the deny handler for API routes.
var DenyJSON = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"you must be logged in"}` + "\n"))
})

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the caller's session, or nil when the request
// is anonymous. The nil result is passed straight into the services, which
// answer with apperror.ErrUnauthenticated.
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionKey).(*model.Session)
	return sess
}

// SetSessionCookie stores a signed token in the session cookie.
// Secure is left to the caller's deployment (HTTPS terminator); set
// secure=true when the server itself serves TLS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie deletes the session cookie (logout).
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionFromCookie(r *http.Request, tokens *TokenService) (*model.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	return tokens.Validate(cookie.Value)
}
