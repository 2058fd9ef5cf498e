// Package add реализует HTTP-обработчик подключения новой сессии:
// проверяет авторизацию строки сессии, добавляет её в пул ротации
// и сохраняет запись в хранилище.
package add

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/leonidvolkov/storygram/internal/http/response"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/models"
)

// Request — структура входных данных для подключения сессии.
type Request struct {
	Name          string `json:"name" validate:"required,min=1,max=64"`
	StringSession string `json:"string_session" validate:"required"`
}

// Pool описывает интерфейс пула сессий.
type Pool interface {
	Register(ctx context.Context, name, stringSession string) error
}

// Repository описывает интерфейс сохранения записи сессии.
type Repository interface {
	SaveSession(ctx context.Context, record *models.SessionRecord) error
}

// Handler обрабатывает запросы подключения сессий.
type Handler struct {
	log      *slog.Logger
	pool     Pool
	repo     Repository
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, pool Pool, repo Repository) *Handler {
	return &Handler{
		log:      log,
		pool:     pool,
		repo:     repo,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sessions.add"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.pool.Register(r.Context(), req.Name, req.StringSession); err != nil {
		log.Error("failed to register session", slog.String("session", req.Name), sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("failed to connect session"))
		return
	}

	record := &models.SessionRecord{
		Name:          req.Name,
		StringSession: req.StringSession,
		AddedAt:       time.Now().UTC(),
	}
	if err := h.repo.SaveSession(r.Context(), record); err != nil {
		log.Error("failed to persist session", slog.String("session", req.Name), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("session connected but not persisted"))
		return
	}

	log.Info("session registered", slog.String("session", req.Name))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"name": req.Name,
	}))
}
