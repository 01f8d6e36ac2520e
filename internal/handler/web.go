package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/service"
)

// WebHandler serves the form-based routes. Every form action answers with
// a 303 redirect and leaves a flash message describing the outcome; no
// error reaches the browser as a failed request.
//
// Pages are not rendered here. GET /login, /signup and /dashboard return
// JSON with the data a page would show.
type WebHandler struct {
	auth    *service.AuthService
	posts   *service.PostService
	cookies Cookies
	flashes *Flashes
	github  bool
	logger  *slog.Logger
}

func NewWebHandler(
	authSvc *service.AuthService,
	posts *service.PostService,
	cookies Cookies,
	flashes *Flashes,
	githubEnabled bool,
	logger *slog.Logger,
) *WebHandler {
	return &WebHandler{
		auth:    authSvc,
		posts:   posts,
		cookies: cookies,
		flashes: flashes,
		github:  githubEnabled,
		logger:  logger,
	}
}

// Deny is the RequireSession deny handler for web routes.
func (h *WebHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.flashes.Add(w, r, "Please log in first")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleHome sends signed-in users to the dashboard and everyone else to
// the login page.
//
// HTTP: GET /
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if auth.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleLoginPage returns the pending messages for the login or signup
// form.
//
// HTTP: GET /login, GET /signup
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"flashes":       h.flashes.Pop(w, r),
		"githubEnabled": h.github,
	})
}

// HandleLogin signs in from the login form (fields username, password).
//
// HTTP: POST /login
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	result, err := h.auth.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		h.fail(w, r, err, "/login")
		return
	}

	h.cookies.set(w, result.Token)
	h.flashes.Add(w, r, "Welcome back, "+result.User.Username+"!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleSignup registers from the signup form and signs the new account in.
//
// HTTP: POST /signup
func (h *WebHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	result, err := h.auth.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		h.fail(w, r, err, "/signup")
		return
	}

	h.cookies.set(w, result.Token)
	h.flashes.Add(w, r, "Account created. Welcome, "+result.User.Username+"!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: GET /logout
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.clear(w)
	h.flashes.Add(w, r, "You have been logged out")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleDashboard returns the signed-in user, their pending messages and a
// feed page. It accepts the same query parameters as /api/feed.
//
// HTTP: GET /dashboard
func (h *WebHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	filter, loc, err := parseFeedQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	posts, err := h.posts.ListFeed(r.Context(), sess, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    sess,
		"flashes": h.flashes.Pop(w, r),
		"posts":   inZone(posts, loc),
	})
}

// HandleAdd creates a post from the form fields title and content.
//
// HTTP: POST /add
func (h *WebHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	_, err := h.posts.CreatePost(r.Context(), auth.SessionFromContext(r.Context()),
		r.PostFormValue("title"), r.PostFormValue("content"))
	h.done(w, r, err, "Post published")
}

// HandleEdit edits the caller's post from the form fields title and
// content.
//
// HTTP: POST /edit/{id}
func (h *WebHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		_, err = h.posts.EditPost(r.Context(), auth.SessionFromContext(r.Context()), id,
			r.PostFormValue("title"), r.PostFormValue("content"))
	}
	h.done(w, r, err, "Post updated")
}

// HandleDelete deletes the caller's post.
//
// HTTP: POST /delete/{id}
func (h *WebHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		err = h.posts.DeletePost(r.Context(), auth.SessionFromContext(r.Context()), id)
	}
	h.done(w, r, err, "Post deleted")
}

// HandleComment adds a comment from the form field comment.
//
// HTTP: POST /comment/{id}
func (h *WebHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err == nil {
		_, err = h.posts.AddComment(r.Context(), auth.SessionFromContext(r.Context()), id,
			r.PostFormValue("comment"))
	}
	h.done(w, r, err, "Comment added")
}

// HandleReact adds the emoji from the path as a reaction.
//
// HTTP: GET /react/{id}/{emoji}
func (h *WebHandler) HandleReact(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.done(w, r, err, "")
		return
	}

	// chi routes on RawPath when the request has one, and the parameter is
	// then still escaped. Otherwise it comes from the decoded Path.
	emoji := chi.URLParam(r, "emoji")
	if r.URL.RawPath != "" {
		if emoji, err = url.PathUnescape(emoji); err != nil {
			h.done(w, r, apperror.ValidationFailed("emoji", "invalid emoji"), "")
			return
		}
	}

	_, created, err := h.posts.AddReaction(r.Context(), auth.SessionFromContext(r.Context()), id, emoji)
	msg := "Reaction added"
	if !created {
		msg = "You already reacted with " + emoji
	}
	h.done(w, r, err, msg)
}

// done redirects to the dashboard with msg on success, or with the error
// message on failure.
func (h *WebHandler) done(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if err != nil {
		h.fail(w, r, err, "/dashboard")
		return
	}
	h.flashes.Add(w, r, msg)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// fail flashes the user-facing message of err and redirects to target.
// Unauthenticated callers always go to /login.
func (h *WebHandler) fail(w http.ResponseWriter, r *http.Request, err error, target string) {
	var appErr *apperror.AppError
	msg := "Something went wrong, please try again"
	if errors.As(err, &appErr) {
		msg = appErr.Message
	} else {
		h.logger.Error("web request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	if errors.Is(err, apperror.ErrUnauthenticated) {
		target = "/login"
	}
	h.flashes.Add(w, r, msg)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
