// Package subscription содержит бизнес-логику тарифов: вычисление
// действующего тарифа, активацию и выпуск кодов, дневные квоты.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leonidvolkov/storygram/internal/lib/codegen"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/metrics"
	"github.com/leonidvolkov/storygram/internal/models"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
)

// Ошибки активации кодов и работы с пользователями.
var (
	ErrInvalidCode   = errors.New("invalid code")
	ErrCodeExpired   = errors.New("code has expired")
	ErrCodeExhausted = errors.New("code usage limit reached")
	ErrUserNotFound  = errors.New("user not found")
)

// Repository определяет методы хранилища, нужные движку подписок.
type Repository interface {
	// GetUser возвращает пользователя по ID, repository.ErrNotFound при отсутствии.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// SaveUser сохраняет запись пользователя целиком.
	SaveUser(ctx context.Context, user *models.User) error
	// GetCode возвращает код по токену, repository.ErrNotFound при отсутствии.
	GetCode(ctx context.Context, token string) (*models.SubscriptionCode, error)
	// SaveCode сохраняет код целиком.
	SaveCode(ctx context.Context, code *models.SubscriptionCode) error
}

// Service реализует движок подписок.
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time

	// Секции взаимного исключения по токену кода: две конкурентные
	// активации одного кода не могут обе пройти проверку лимита.
	codeLocks sync.Map // token -> *sync.Mutex
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Correct приводит запись пользователя в соответствие с моментом now:
// снимает истёкшую подписку и сбрасывает дневной счётчик, если с последнего
// сброса прошёл хотя бы один полный день. Возвращает true, если запись
// изменилась и её нужно сохранить. Функция чистая — удобна для тестов
// без подмены часов.
func Correct(u *models.User, now time.Time) bool {
	changed := false

	if u.SubscriptionEnds != nil && now.After(*u.SubscriptionEnds) {
		u.Tier = models.TierFree
		u.SubscriptionEnds = nil
		changed = true
	}

	if now.Sub(u.LastReset) >= 24*time.Hour {
		u.DailyDownloads = 0
		u.LastReset = now
		changed = true
	}

	return changed
}

// EffectiveStatus возвращает действующий тариф пользователя и дату окончания
// подписки, предварительно скорректировав устаревшую запись. Вызывается
// перед любой проверкой квоты — это единственная точка, удерживающая
// сохранённое состояние в согласии с часами.
func (s *Service) EffectiveStatus(ctx context.Context, userID int64) (models.Tier, *time.Time, error) {
	const op = "subscription.EffectiveStatus"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TierFree, nil, nil
		}
		return models.TierFree, nil, fmt.Errorf("%s: %w", op, err)
	}

	if Correct(user, s.now()) {
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return models.TierFree, nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return user.Tier, user.SubscriptionEnds, nil
}

// RedeemCode активирует код для пользователя: устанавливает тариф кода,
// продлевает подписку на длительность кода и увеличивает счётчик активаций.
// Последовательность чтение-изменение-запись для одного токена защищена
// секцией взаимного исключения.
func (s *Service) RedeemCode(ctx context.Context, userID int64, token string) (*models.SubscriptionCode, error) {
	const op = "subscription.RedeemCode"

	token = codegen.Normalize(token)

	lock := s.lockFor(token)
	lock.Lock()
	defer lock.Unlock()

	code, err := s.repo.GetCode(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.CodeRedemptions.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	if code.Expired(now) {
		metrics.CodeRedemptions.WithLabelValues("expired").Inc()
		return nil, ErrCodeExpired
	}
	if code.Exhausted() {
		metrics.CodeRedemptions.WithLabelValues("exhausted").Inc()
		return nil, ErrCodeExhausted
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ends := now.AddDate(0, 0, code.DurationDays)
	user.Tier = code.Tier
	user.SubscriptionEnds = &ends

	code.UsedCount++
	if err := s.repo.SaveCode(ctx, code); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.CodeRedemptions.WithLabelValues("success").Inc()
	s.log.Info("code redeemed",
		slog.Int64("user_id", userID),
		slog.String("tier", string(code.Tier)),
		slog.Int("duration_days", code.DurationDays))
	return code, nil
}

// IssueCode выпускает новый код активации и возвращает его.
// Токен перегенерируется при коллизии с уже существующим.
func (s *Service) IssueCode(ctx context.Context, tier models.Tier, durationDays, maxUses int, expiresInDays *int) (*models.SubscriptionCode, error) {
	const op = "subscription.IssueCode"

	now := s.now()
	var token string
	for {
		token = codegen.NewToken(string(tier), durationDays, s.now())
		_, err := s.repo.GetCode(ctx, token)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var expiresAt *time.Time
	if expiresInDays != nil {
		t := now.AddDate(0, 0, *expiresInDays)
		expiresAt = &t
	}

	code := &models.SubscriptionCode{
		Token:        token,
		Tier:         tier,
		DurationDays: durationDays,
		MaxUses:      maxUses,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}
	if err := s.repo.SaveCode(ctx, code); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("code issued", slog.String("tier", string(tier)), slog.Int("duration_days", durationDays))
	return code, nil
}

// RegisterUser возвращает пользователя, создавая запись при первом обращении.
func (s *Service) RegisterUser(ctx context.Context, userID int64, username string) (*models.User, error) {
	const op = "subscription.RegisterUser"

	user, err := s.repo.GetUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user = models.NewUser(userID, username)
	user.LastReset = s.now()
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.Int64("user_id", userID), slog.String("username", username))
	return user, nil
}

// RemainingToday возвращает остаток дневной квоты пользователя.
// Отрицательное значение означает безлимит.
func (s *Service) RemainingToday(ctx context.Context, userID int64) (int, error) {
	const op = "subscription.RemainingToday"

	tier, _, err := s.EffectiveStatus(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	policy := models.PolicyFor(tier)
	if policy.DailyLimit < 0 {
		return -1, nil
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return policy.DailyLimit, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	remaining := policy.DailyLimit - user.DailyDownloads
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// FollowAccount добавляет аккаунт в список отслеживаемых пользователя.
func (s *Service) FollowAccount(ctx context.Context, userID int64, account string) error {
	return s.updateUser(ctx, userID, func(u *models.User) bool {
		return u.Follow(account)
	})
}

// UnfollowAccount убирает аккаунт из списка отслеживаемых пользователя.
func (s *Service) UnfollowAccount(ctx context.Context, userID int64, account string) error {
	return s.updateUser(ctx, userID, func(u *models.User) bool {
		return u.Unfollow(account)
	})
}

// UpdateSettings заменяет настройки пользователя.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, settings models.Settings) error {
	return s.updateUser(ctx, userID, func(u *models.User) bool {
		u.Settings = settings
		return true
	})
}

func (s *Service) updateUser(ctx context.Context, userID int64, apply func(*models.User) bool) error {
	const op = "subscription.updateUser"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !apply(user) {
		return nil
	}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		s.log.Error("failed to save user", slog.Int64("user_id", userID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) lockFor(token string) *sync.Mutex {
	actual, _ := s.codeLocks.LoadOrStore(token, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
