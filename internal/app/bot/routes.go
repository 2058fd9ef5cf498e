// Package bot предоставляет маршруты административного HTTP-сервера.
package bot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonidvolkov/storygram/internal/config"
	"github.com/leonidvolkov/storygram/internal/http/handlers/auth/login"
	codecreate "github.com/leonidvolkov/storygram/internal/http/handlers/codes/create"
	"github.com/leonidvolkov/storygram/internal/http/handlers/health"
	sessionadd "github.com/leonidvolkov/storygram/internal/http/handlers/sessions/add"
	sessionlist "github.com/leonidvolkov/storygram/internal/http/handlers/sessions/list"
	sessionremove "github.com/leonidvolkov/storygram/internal/http/handlers/sessions/remove"
	"github.com/leonidvolkov/storygram/internal/http/handlers/stats"
	"github.com/leonidvolkov/storygram/internal/http/middlewarectx"
	"github.com/leonidvolkov/storygram/internal/lib/jwt"
	subscriptionservice "github.com/leonidvolkov/storygram/internal/services/subscription"
	"github.com/leonidvolkov/storygram/internal/services/tasks"
	"github.com/leonidvolkov/storygram/internal/sessionpool"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты административного сервера.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	jwtMaker *jwt.Maker, subscriptionService *subscriptionservice.Service,
	pool *sessionpool.Pool, registry *tasks.Registry, db *repository.Storage) {

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/login", login.New(logger, jwtMaker, cfg.AdminName, cfg.AdminPasswordHash).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/stats", stats.New(logger, db, pool, registry).ServeHTTP)
			r.Post("/codes", codecreate.New(logger, subscriptionService).ServeHTTP)
			r.Get("/sessions", sessionlist.New(logger, pool).ServeHTTP)
			r.Post("/sessions", sessionadd.New(logger, pool, db).ServeHTTP)
			r.Delete("/sessions/{name}", sessionremove.New(logger, pool, db).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
