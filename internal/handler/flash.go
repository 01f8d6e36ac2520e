package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/sakif/microblog/internal/auth"
)

const flashSessionName = "microblog-flash"

// Flashes stores one-shot messages between a form POST and the page the
// browser is redirected to. They live in a signed cookie
// (gorilla/sessions), separate from the session token.
type Flashes struct {
	store  *sessions.CookieStore
	logger *slog.Logger
}

// NewFlashes creates the flash store. key signs the cookie and must be at
// least 32 bytes.
func NewFlashes(key []byte, secure bool, logger *slog.Logger) (*Flashes, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("handler: flash session key must be at least 32 bytes")
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Flashes{store: store, logger: logger}, nil
}

// Add queues a message for the next page. Failures are logged and
// otherwise ignored: a lost flash must not fail the request.
func (f *Flashes) Add(w http.ResponseWriter, r *http.Request, msg string) {
	// Get returns a fresh session when the cookie is missing or invalid.
	sess, _ := f.store.Get(r, flashSessionName)
	sess.AddFlash(msg)
	if err := sess.Save(r, w); err != nil {
		f.logger.Warn("saving flash message", slog.String("error", err.Error()))
	}
}

// Pop returns and clears the queued messages.
func (f *Flashes) Pop(w http.ResponseWriter, r *http.Request) []string {
	sess, _ := f.store.Get(r, flashSessionName)
	raw := sess.Flashes()
	msgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			msgs = append(msgs, s)
		}
	}
	if len(raw) > 0 {
		if err := sess.Save(r, w); err != nil {
			f.logger.Warn("clearing flash messages", slog.String("error", err.Error()))
		}
	}
	return msgs
}

// Cookies sets and clears the session-token cookie.
type Cookies struct {
	TTL    time.Duration
	Secure bool
}

func (c Cookies) set(w http.ResponseWriter, token string) {
	auth.SetSessionCookie(w, token, c.TTL, c.Secure)
}

func (c Cookies) clear(w http.ResponseWriter) {
	auth.ClearSessionCookie(w, c.Secure)
}
