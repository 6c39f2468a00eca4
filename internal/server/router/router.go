// Package router собирает HTTP маршруты relay-сервера на gorilla/mux.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/boardsync/internal/server/handlers"
	"github.com/iudanet/boardsync/internal/server/middleware"
)

// Relay то, что router требует от hub
type Relay interface {
	http.Handler
	handlers.RoomCounter
	handlers.RoomProvider
}

// Limits лимиты частоты запросов на один IP. Нулевой Rate отключает лимит.
type Limits struct {
	ConnectRate int // websocket подключений за Window
	APIRate     int // REST запросов за Window
	Window      time.Duration
}

// DefaultLimits лимиты по умолчанию
var DefaultLimits = Limits{
	ConnectRate: 30,
	APIRate:     120,
	Window:      time.Minute,
}

// Router http.Handler relay-сервера
type Router struct {
	mux      *mux.Router
	limiters []*middleware.RateLimiter
}

// New регистрирует маршруты:
//
//	GET /ws                    websocket relay
//	GET /api/v1/health         health check
//	GET /api/v1/rooms          список комнат
//	GET /api/v1/rooms/{room}   сведения о комнате
func New(relay Relay, logger *slog.Logger, limits Limits) *Router {
	rt := &Router{mux: mux.NewRouter()}

	rt.mux.Use(middleware.RecoveryMiddleware(logger))
	rt.mux.Use(middleware.LoggingWithSkip(logger, []string{"/api/v1/health"}))

	ws := rt.mux.Path("/ws").Subrouter()
	ws.Use(rt.limit(limits.ConnectRate, limits.Window, logger)...)
	ws.Methods(http.MethodGet).Handler(relay)

	healthHandler := handlers.NewHealthHandler(logger, relay)
	roomHandler := handlers.NewRoomHandler(logger, relay)

	apiRouter := rt.mux.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rt.limit(limits.APIRate, limits.Window, logger)...)
	apiRouter.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	apiRouter.HandleFunc("/rooms", roomHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/rooms/{room}", roomHandler.Info).Methods(http.MethodGet)

	return rt
}

func (rt *Router) limit(rate int, window time.Duration, logger *slog.Logger) []mux.MiddlewareFunc {
	if rate <= 0 || window <= 0 {
		return nil
	}

	limiter := middleware.NewRateLimiter(rate, window, logger)
	rt.limiters = append(rt.limiters, limiter)

	return []mux.MiddlewareFunc{limiter.Middleware}
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Stop останавливает фоновые goroutine rate limiter'ов
func (rt *Router) Stop() {
	for _, l := range rt.limiters {
		l.Stop()
	}
}
