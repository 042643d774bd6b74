package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/store"
)

// LeaderboardHandler serves the points ranking.
type LeaderboardHandler struct {
	DB *sql.DB
}

// Top handles GET /api/leaderboard.
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	entries, err := store.TopN(r.Context(), h.DB, limitParam(r, store.DefaultLeaderboardSize, 100))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entries)
}

// Me handles GET /api/leaderboard/me.
func (h *LeaderboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rank, err := store.RankOf(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, model.LeaderboardEntry{
		Rank:          rank,
		UserID:        user.ID,
		Name:          user.Name,
		Points:        user.Points,
		ItemsUploaded: user.ItemsUploaded,
	})
}
