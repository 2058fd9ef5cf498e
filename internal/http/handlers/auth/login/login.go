// Package login реализует HTTP-обработчик аутентификации администратора.
//
// В нём определяется структура Request для входных данных, выполняется декодирование JSON,
// проверка и валидация полей, сверка пароля с bcrypt-хэшем из конфигурации
// и выпуск JWT. В случае ошибок формируются соответствующие HTTP-ответы.
package login

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/leonidvolkov/storygram/internal/http/response"
	"github.com/leonidvolkov/storygram/internal/lib/password"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
)

// Request — структура входных данных для авторизации.
type Request struct {
	Name     string `json:"name" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// TokenIssuer описывает интерфейс выпуска JWT для администратора.
type TokenIssuer interface {
	GenerateToken(name string) (string, error)
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log          *slog.Logger
	maker        TokenIssuer
	adminName    string
	passwordHash string
	validate     *validator.Validate
}

// New создает новый экземпляр Handler с учётными данными администратора
// из конфигурации.
func New(log *slog.Logger, maker TokenIssuer, adminName, passwordHash string) *Handler {
	return &Handler{
		log:          log,
		maker:        maker,
		adminName:    adminName,
		passwordHash: passwordHash,
		validate:     validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	if req.Name != h.adminName || password.CompareHash(h.passwordHash, req.Password) != nil {
		log.Error("invalid credentials", slog.String("name", req.Name))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}

	token, err := h.maker.GenerateToken(req.Name)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("login success", slog.String("name", req.Name))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": token,
		"name":  req.Name,
	}))
}
