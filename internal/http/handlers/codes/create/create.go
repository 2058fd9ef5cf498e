// Package create реализует HTTP-обработчик выпуска кода активации подписки.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/leonidvolkov/storygram/internal/http/response"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/models"
)

// Request — структура входных данных для выпуска кода.
type Request struct {
	Tier          string `json:"tier" validate:"required,oneof=free premium ultra"`
	DurationDays  int    `json:"duration_days" validate:"required,gt=0"`
	MaxUses       int    `json:"max_uses" validate:"required,gt=0"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty" validate:"omitempty,gt=0"`
}

// Service описывает интерфейс движка подписок для выпуска кодов.
type Service interface {
	IssueCode(ctx context.Context, tier models.Tier, durationDays, maxUses int, expiresInDays *int) (*models.SubscriptionCode, error)
}

// Handler обрабатывает запросы выпуска кодов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.codes.create"

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

	tier := models.ParseTier(req.Tier)
	code, err := h.service.IssueCode(r.Context(), tier, req.DurationDays, req.MaxUses, req.ExpiresInDays)
	if err != nil {
		log.Error("failed to issue code", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to issue code"))
		return
	}

	log.Info("code issued", slog.String("tier", string(code.Tier)),
		slog.Int("duration_days", code.DurationDays))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token":         code.Token,
		"tier":          code.Tier,
		"duration_days": code.DurationDays,
		"max_uses":      code.MaxUses,
		"expires_at":    code.ExpiresAt,
	}))
}
