// Package list реализует HTTP-обработчик списка сессий пула.
package list

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/leonidvolkov/storygram/internal/http/response"
)

// Pool отдаёт имена подключённых сессий.
type Pool interface {
	Names() []string
	Len() int
}

// Handler обрабатывает запросы списка сессий.
type Handler struct {
	log  *slog.Logger
	pool Pool
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, pool Pool) *Handler {
	return &Handler{log: log, pool: pool}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"count":    h.pool.Len(),
		"sessions": h.pool.Names(),
	}))
}
