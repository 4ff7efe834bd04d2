package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/questboard/internal/handler"
	"github.com/dukerupert/questboard/internal/middleware"
	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/tracker"
	ws "github.com/dukerupert/questboard/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	todoH       *handler.TodoHandler
	userH       *handler.UserHandler
	settingsH   *handler.SettingsHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	todoStore := store.NewTodoStore(db)
	settingsStore := store.NewSettingsStore(db)

	tr := tracker.New(db, todoStore, userStore, logger.With("component", "tracker"))

	return &Server{
		db:          db,
		hub:         hub,
		todoH:       handler.NewTodoHandler(todoStore, userStore, tr, hub, logger.With("component", "todo")),
		userH:       handler.NewUserHandler(userStore, hub, logger.With("component", "user")),
		settingsH:   handler.NewSettingsHandler(settingsStore, hub, logger.With("component", "settings")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Todo API routes
	mux.HandleFunc("GET /api/todos", s.todoH.List)
	mux.HandleFunc("POST /api/todos", s.todoH.Create)
	mux.HandleFunc("PUT /api/todos/{id}", s.todoH.Update)
	mux.HandleFunc("DELETE /api/todos/{id}", s.todoH.Delete)
	mux.HandleFunc("POST /api/todos/{id}/claim", s.todoH.Claim)
	mux.HandleFunc("GET /api/open-list", s.todoH.OpenList)
	mux.HandleFunc("POST /api/score", s.todoH.ScorePreview)
	mux.HandleFunc("GET /api/daily-completion", s.todoH.DailyCompletion)

	// User API routes
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("POST /api/users", s.userH.Create)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/users/{id}", s.userH.Update)
	mux.HandleFunc("DELETE /api/users/{id}", s.userH.Delete)
	mux.HandleFunc("POST /api/users/{id}/use-super-point", s.userH.UseSuperPoint)
	mux.HandleFunc("POST /api/users/{id}/reset-points", s.userH.ResetPoints)

	// Settings / PIN routes
	mux.HandleFunc("GET /api/settings", s.settingsH.Get)
	mux.HandleFunc("PUT /api/settings", s.settingsH.Update)
	mux.HandleFunc("GET /api/settings/has-pin", s.settingsH.HasPIN)
	mux.HandleFunc("POST /api/settings/verify-pin", s.rateLimitedHandler(s.settingsH.VerifyPIN))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	mux.HandleFunc("GET /health", s.healthHandler)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
