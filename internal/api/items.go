package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/erazemk/odpadki/internal/auth"
	"github.com/erazemk/odpadki/internal/imaging"
	"github.com/erazemk/odpadki/internal/lifecycle"
	"github.com/erazemk/odpadki/internal/media"
	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/store"
)

// maxImageUpload bounds item photo uploads before normalization.
const maxImageUpload = 20 << 20

// ItemsHandler handles item upload, listing and verification endpoints.
type ItemsHandler struct {
	DB           *sql.DB
	Orchestrator *lifecycle.Orchestrator
	Media        media.Store
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload)
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	description := strings.TrimSpace(r.FormValue("description"))

	item, err := h.Orchestrator.Upload(r.Context(), sessionFrom(claims), file, description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// List handles GET /api/items. Items are returned newest first.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	items, err := store.ListItemsByUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	slices.SortStableFunc(items, func(a, b model.Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	jsonResponse(w, http.StatusOK, items)
}

// ListUnverified handles GET /api/items/unverified (admin).
func (h *ItemsHandler) ListUnverified(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListUnverifiedItems(r.Context(), h.DB, limitParam(r, store.DefaultUnverifiedLimit, 100))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}

	data, mime, err := imaging.DecodeDataURI(item.ImageURL)
	if err != nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// GetVideo handles GET /api/items/{id}/video.
func (h *ItemsHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}
	if item.VerificationVideoURL == "" {
		jsonError(w, http.StatusNotFound, "no video")
		return
	}

	data, mime, err := h.Media.Get(r.Context(), item.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Verify handles POST /api/items/{id}/verify.
func (h *ItemsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	// Leave room for the multipart envelope; CheckVideo reports oversized files.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxVideoSize+(2<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusBadRequest, "Video file is too large. Please upload a video smaller than 100MB.")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "video file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imaging.MaxVideoSize+1))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read video")
		return
	}

	mime := imaging.NormalizeMIME(header.Header.Get("Content-Type"))
	if mime == "" || mime == "application/octet-stream" {
		mime = imaging.NormalizeMIME(http.DetectContentType(data))
	}

	video := lifecycle.VideoUpload{Data: data, MIME: mime}
	if s := r.FormValue("duration"); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		video.Duration = imaging.SecondsToDuration(secs)
	}

	res, err := h.Orchestrator.Verify(r.Context(), sessionFrom(claims), r.PathValue("id"), video)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("verification finished", "user", claims.UserID, "item", r.PathValue("id"), "accepted", res.Accepted)
	jsonResponse(w, http.StatusOK, res)
}

// visibleItem loads the item named in the path if the caller may see it.
func (h *ItemsHandler) visibleItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	claims := GetClaims(r.Context())

	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if !canSee(claims, item) {
		writeError(w, r, lifecycle.ErrForbidden)
		return nil, false
	}
	return item, true
}

func canSee(claims *auth.Claims, item *model.Item) bool {
	return item.UserID == claims.UserID || model.RoleAtLeast(claims.Role, model.RoleAdmin)
}
