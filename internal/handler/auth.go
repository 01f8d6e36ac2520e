package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/storage"
)

const stateCookieName = "oauth_state"

// AuthHandler manages sign-up, sign-in and the caller's profile.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin → check credentials, issue the session cookie
//   - HandleLogout                 → clear the session cookie
//   - HandleMe                     → return the signed-in user's profile
//   - HandleAvatar                 → store an uploaded avatar, refresh the cookie
//   - HandleGitHubLogin / HandleGitHubCallback → optional GitHub OAuth flow
//
// DEPENDENCY CHAIN:
//   - svc     *service.AuthService   → all account rules
//   - avatars storage.AvatarStore    → where uploaded images go
//   - github  *auth.GitHubProvider   → nil when GitHub sign-in is not configured
//   - flashes *Flashes               → messages for the browser redirects
type AuthHandler struct {
	svc     *service.AuthService
	avatars storage.AvatarStore
	github  *auth.GitHubProvider
	cookies Cookies
	flashes *Flashes
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	svc *service.AuthService,
	avatars storage.AvatarStore,
	github *auth.GitHubProvider,
	cookies Cookies,
	flashes *Flashes,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:     svc,
		avatars: avatars,
		github:  github,
		cookies: cookies,
		flashes: flashes,
		logger:  logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /api/auth/register  {"username": "...", "password": "..."}
// 201 {"user": {...}} with the session cookie set.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.set(w, result.Token)
	writeJSON(w, http.StatusCreated, map[string]any{"user": result.User})
}

// HandleLogin signs in with a username and password.
//
// HTTP: POST /api/auth/login  {"username": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.set(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{"user": result.User})
}

// HandleLogout clears the session cookie, effectively logging the user out.
//
// HTTP: POST /api/auth/logout
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireSession middleware sets the session in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleAvatar stores an uploaded avatar and points the caller's profile
// at it.
//
// HTTP: POST /api/me/avatar  multipart/form-data, file field "avatar"
// The session cookie is reissued because the token carries the avatar.
func (h *AuthHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		writeError(w, apperror.Unauthenticated())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxAvatarBytes+64<<10)
	if err := r.ParseMultipartForm(storage.MaxAvatarBytes); err != nil {
		writeError(w, apperror.ValidationFailed("avatar",
			fmt.Sprintf("avatar upload must be a multipart form under %d bytes", storage.MaxAvatarBytes)))
		return
	}

	file, _, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, apperror.ValidationFailed("avatar", "avatar file is required"))
		return
	}
	defer file.Close()

	ref, err := h.avatars.Save(r.Context(), file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			err = apperror.ValidationFailed("avatar",
				fmt.Sprintf("avatar must be %d bytes or fewer", storage.MaxAvatarBytes))
		case errors.Is(err, storage.ErrUnsupportedType):
			err = apperror.ValidationFailed("avatar", "avatar must be a PNG, JPEG, GIF or WebP image")
		default:
			h.logger.Error("storing avatar", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	result, err := h.svc.UpdateAvatar(r.Context(), sess, ref)
	if err != nil {
		// Nothing points at the new file yet.
		if derr := h.avatars.Delete(context.WithoutCancel(r.Context()), ref); derr != nil {
			h.logger.Error("removing orphaned avatar",
				slog.String("ref", ref),
				slog.String("error", derr.Error()),
			)
		}
		writeError(w, err)
		return
	}

	h.cookies.set(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{"user": result.User})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Sign in the linked account, or create one
//  4. Set the session cookie and redirect to the dashboard
//
// Failures after the state check redirect to /login with a flash message.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		h.flashes.Add(w, r, "GitHub sign-in was cancelled")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		h.flashes.Add(w, r, "GitHub sign-in failed")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 3: Sign in or create the account ---
	result, err := h.svc.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		if errors.Is(err, apperror.ErrUsernameTaken) {
			h.flashes.Add(w, r, "That username is already registered; log in with your password")
		} else {
			h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
			h.flashes.Add(w, r, "GitHub sign-in failed")
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// --- Step 4: Issue the session cookie ---
	h.cookies.set(w, result.Token)
	h.flashes.Add(w, r, "Logged in with GitHub")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
