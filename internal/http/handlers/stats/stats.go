// Package stats реализует HTTP-обработчик сводной статистики сервиса:
// распределение пользователей по тарифам, количество загрузок,
// выпущенных кодов, сессий в пуле и активных задач.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/leonidvolkov/storygram/internal/http/response"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
)

// Repository описывает интерфейс чтения статистики из хранилища.
type Repository interface {
	CountUserStats(ctx context.Context) (*repository.UserStats, error)
	CountCodes(ctx context.Context) (int, error)
}

// PoolInfo отдаёт текущее состояние пула сессий.
type PoolInfo interface {
	Len() int
	Names() []string
}

// TaskInfo отдаёт количество активных задач загрузки.
type TaskInfo interface {
	Total() int
}

// Handler обрабатывает запросы статистики.
type Handler struct {
	log   *slog.Logger
	repo  Repository
	pool  PoolInfo
	tasks TaskInfo
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, repo Repository, pool PoolInfo, tasks TaskInfo) *Handler {
	return &Handler{log: log, repo: repo, pool: pool, tasks: tasks}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userStats, err := h.repo.CountUserStats(r.Context())
	if err != nil {
		log.Error("failed to count user stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to collect stats"))
		return
	}

	codes, err := h.repo.CountCodes(r.Context())
	if err != nil {
		log.Error("failed to count codes", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to collect stats"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"total_users":      userStats.TotalUsers,
		"free_users":       userStats.FreeUsers,
		"premium_users":    userStats.PremiumUsers,
		"ultra_users":      userStats.UltraUsers,
		"total_downloads":  userStats.TotalDownloads,
		"codes_issued":     codes,
		"active_sessions":  h.pool.Len(),
		"session_names":    h.pool.Names(),
		"active_downloads": h.tasks.Total(),
	}))
}
