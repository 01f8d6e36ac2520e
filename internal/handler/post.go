package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/service"
)

// PostHandler serves the JSON API for posts, comments and reactions.
//
// Every route sits behind RequireSession, but the handler still passes
// the (possibly nil) session to the service: the service is the one that
// enforces authentication and ownership.
type PostHandler struct {
	svc    *service.PostService
	logger *slog.Logger
}

func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{svc: svc, logger: logger}
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

// HandleCreate creates a post owned by the caller.
//
// HTTP: POST /api/posts  {"title": "...", "content": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.svc.CreatePost(r.Context(), auth.SessionFromContext(r.Context()), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleGet returns one post with its comments and reactions.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.svc.GetPost(r.Context(), auth.SessionFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleUpdate edits the caller's own post.
//
// HTTP: PUT /api/posts/{id}  {"title": "...", "content": "..."}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.svc.EditPost(r.Context(), auth.SessionFromContext(r.Context()), id, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete deletes the caller's own post with its comments and
// reactions.
//
// HTTP: DELETE /api/posts/{id} → 204 No Content
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.DeletePost(r.Context(), auth.SessionFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleComment adds a comment to any post.
//
// HTTP: POST /api/posts/{id}/comments  {"content": "..."}
func (h *PostHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.svc.AddComment(r.Context(), auth.SessionFromContext(r.Context()), id, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleReact adds an emoji reaction.
//
// HTTP: POST /api/posts/{id}/reactions  {"emoji": "👍"}
// 201 when the reaction is new, 200 with the existing reaction otherwise.
func (h *PostHandler) HandleReact(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req reactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	reaction, created, err := h.svc.AddReaction(r.Context(), auth.SessionFromContext(r.Context()), id, req.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, reaction)
}

// HandleFeed returns one page of the feed.
//
// HTTP: GET /api/feed?tab=all|mine|authors|search&authors=1,2&q=&limit=&offset=&tz=
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	filter, loc, err := parseFeedQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.svc.ListFeed(r.Context(), auth.SessionFromContext(r.Context()), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": inZone(posts, loc)})
}
