package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/store"
)

// maxPostLength is the longest post accepted, in characters.
const maxPostLength = 2000

// PostsHandler handles the community feed.
type PostsHandler struct {
	DB *sql.DB
}

type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// List handles GET /api/posts.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := store.ListPosts(r.Context(), h.DB, limitParam(r, store.DefaultPostLimit, 200))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, posts)
}

// Create handles POST /api/posts.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		jsonError(w, http.StatusBadRequest, "content required")
		return
	}
	if utf8.RuneCountInString(req.Content) > maxPostLength {
		jsonError(w, http.StatusBadRequest, "post is too long")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	post, err := store.CreatePost(r.Context(), h.DB, user.ID, user.Name, req.Content, req.ImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("post created", "user", user.ID, "post", post.ID)
	jsonResponse(w, http.StatusCreated, post)
}

// Like handles POST /api/posts/{id}/like.
func (h *PostsHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, model.VoteLike)
}

// Dislike handles POST /api/posts/{id}/dislike.
func (h *PostsHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, model.VoteDislike)
}

func (h *PostsHandler) vote(w http.ResponseWriter, r *http.Request, vote int) {
	claims := GetClaims(r.Context())

	post, err := store.VotePost(r.Context(), h.DB, r.PathValue("id"), claims.UserID, vote)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, post)
}
