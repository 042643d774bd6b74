package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/odpadki/internal/events"
	"github.com/erazemk/odpadki/internal/lifecycle"
	"github.com/erazemk/odpadki/internal/media"
	"github.com/erazemk/odpadki/internal/model"
)

// Deps are the services the API is built on.
type Deps struct {
	DB           *sql.DB
	JWTSecret    string
	Orchestrator *lifecycle.Orchestrator
	Media        media.Store
	// Hub is optional; without it the websocket endpoint is not registered.
	Hub *events.Hub
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{DB: d.DB, Orchestrator: d.Orchestrator, Media: d.Media}
	leaderboardHandler := &LeaderboardHandler{DB: d.DB}
	postsHandler := &PostsHandler{DB: d.DB}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public.
	mux.HandleFunc("POST /api/auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/leaderboard", leaderboardHandler.Top)

	// Authenticated.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/unverified", authMW(requireAdmin(http.HandlerFunc(itemsHandler.ListUnverified))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("GET /api/items/{id}/video", authMW(http.HandlerFunc(itemsHandler.GetVideo)))
	mux.Handle("POST /api/items/{id}/verify", authMW(http.HandlerFunc(itemsHandler.Verify)))

	mux.Handle("GET /api/leaderboard/me", authMW(http.HandlerFunc(leaderboardHandler.Me)))

	mux.Handle("GET /api/posts", authMW(http.HandlerFunc(postsHandler.List)))
	mux.Handle("POST /api/posts", authMW(http.HandlerFunc(postsHandler.Create)))
	mux.Handle("POST /api/posts/{id}/like", authMW(http.HandlerFunc(postsHandler.Like)))
	mux.Handle("POST /api/posts/{id}/dislike", authMW(http.HandlerFunc(postsHandler.Dislike)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))

	if d.Hub != nil {
		wsHandler := &WSHandler{DB: d.DB, JWTSecret: d.JWTSecret, Hub: d.Hub}
		mux.HandleFunc("GET /api/ws", wsHandler.Serve)
	}

	return mux
}
