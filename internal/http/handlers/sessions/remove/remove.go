// Package remove реализует HTTP-обработчик отключения сессии из пула.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/leonidvolkov/storygram/internal/http/response"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
)

// Pool описывает интерфейс пула сессий.
type Pool interface {
	Deregister(name string) bool
}

// Repository описывает интерфейс удаления записи сессии.
type Repository interface {
	DeleteSession(ctx context.Context, name string) error
}

// Handler обрабатывает запросы отключения сессий.
type Handler struct {
	log  *slog.Logger
	pool Pool
	repo Repository
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, pool Pool, repo Repository) *Handler {
	return &Handler{log: log, pool: pool, repo: repo}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sessions.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	name := chi.URLParam(r, "name")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("session name is required"))
		return
	}

	removed := h.pool.Deregister(name)
	err := h.repo.DeleteSession(r.Context(), name)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("failed to delete session record", slog.String("session", name), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to delete session"))
		return
	}

	if !removed && errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("session not found"))
		return
	}

	log.Info("session removed", slog.String("session", name))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"name": name,
	}))
}
