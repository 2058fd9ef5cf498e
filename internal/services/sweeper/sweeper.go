// Package sweeper реализует ежедневную чистку: сброс дневных счётчиков,
// снятие истёкших подписок с уведомлением и очистку кеша историй.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/leonidvolkov/storygram/internal/cache"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/models"
)

// UserRepository определяет методы хранилища, нужные чистке.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// Cache описывает очистку устаревших записей кеша.
type Cache interface {
	PruneStale(ctx context.Context, pattern string, olderThan time.Duration) (int, error)
}

// Notifier доставляет уведомление о понижении тарифа.
// Доставка — строго best-effort: ошибки логируются и глотаются.
type Notifier interface {
	NotifyDowngrade(notice models.DowngradeNotice) error
}

// Service реализует ежедневную чистку.
type Service struct {
	repo     UserRepository
	cache    Cache
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo UserRepository, c Cache, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Run запускает чистку сразу и далее раз в сутки, пока не отменён контекст.
func (s *Service) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce выполняет три фазы чистки по порядку. Фазы независимы:
// ошибка одной не мешает остальным, каждая сохраняет свои изменения сама.
func (s *Service) RunOnce(ctx context.Context) {
	s.log.Info("starting maintenance sweep")
	s.runQuotaReset(ctx)
	s.runExpirySweep(ctx)
	s.runCachePrune(ctx)
	s.log.Info("maintenance sweep finished")
}

// runQuotaReset зануляет дневные счётчики пользователей, у которых с
// последнего сброса прошёл хотя бы один полный день.
func (s *Service) runQuotaReset(ctx context.Context) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.log.Error("quota reset: failed to list users", sl.Err(err))
		return
	}

	now := s.now()
	reset := 0
	for _, u := range users {
		if now.Sub(u.LastReset) < 24*time.Hour {
			continue
		}
		u.DailyDownloads = 0
		u.LastReset = now
		if err := s.repo.SaveUser(ctx, u); err != nil {
			s.log.Error("quota reset: failed to save user", slog.Int64("user_id", u.ID), sl.Err(err))
			continue
		}
		reset++
	}
	s.log.Info("quota reset finished", slog.Int("users_reset", reset))
}

// runExpirySweep снимает истёкшие подписки и уведомляет пользователей.
// Неудавшееся уведомление не повторяется — это единственная
// намеренно проглатываемая ошибка.
func (s *Service) runExpirySweep(ctx context.Context) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.log.Error("expiry sweep: failed to list users", sl.Err(err))
		return
	}

	now := s.now()
	downgraded := 0
	for _, u := range users {
		if u.SubscriptionEnds == nil || !now.After(*u.SubscriptionEnds) {
			continue
		}
		previousTier := u.Tier
		u.Tier = models.TierFree
		u.SubscriptionEnds = nil
		if err := s.repo.SaveUser(ctx, u); err != nil {
			s.log.Error("expiry sweep: failed to save user", slog.Int64("user_id", u.ID), sl.Err(err))
			continue
		}
		downgraded++

		notice := models.DowngradeNotice{
			UserID:   u.ID,
			Username: u.Username,
			Tier:     string(previousTier),
		}
		if err := s.notifier.NotifyDowngrade(notice); err != nil {
			s.log.Warn("expiry sweep: failed to notify user", slog.Int64("user_id", u.ID), sl.Err(err))
		}
	}
	s.log.Info("expiry sweep finished", slog.Int("users_downgraded", downgraded))
}

// runCachePrune убирает из кеша записи старше окна хранения.
func (s *Service) runCachePrune(ctx context.Context) {
	removed, err := s.cache.PruneStale(ctx, "stories:*", cache.Retention)
	if err != nil {
		s.log.Error("cache prune failed", sl.Err(err))
		return
	}
	s.log.Info("cache prune finished", slog.Int("entries_removed", removed))
}
