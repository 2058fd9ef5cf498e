// Package downloader оркестрирует одну загрузку истории: проверяет квоту,
// берёт сессию из пула, запрашивает историю у клиента Telegram и
// обновляет счётчики пользователя.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gotd/td/tg"
	"golang.org/x/time/rate"

	"github.com/leonidvolkov/storygram/internal/cache"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/metrics"
	"github.com/leonidvolkov/storygram/internal/models"
	"github.com/leonidvolkov/storygram/internal/services/subscription"
	"github.com/leonidvolkov/storygram/internal/sessionpool"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
	"github.com/leonidvolkov/storygram/internal/telegram"
)

// Ошибки координатора.
var (
	ErrQuotaExceeded  = errors.New("daily download limit reached")
	ErrDownloadFailed = errors.New("download failed")
)

// Пределы повторов после FLOOD_WAIT. Ограничение повторов закрывает
// риск бесконечной рекурсии при повторяющихся сигналах бэкенда.
const (
	maxAttempts   = 3
	maxWaitBudget = 5 * time.Minute
)

// UserRepository определяет методы хранилища пользователей.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// StatusProvider вычисляет действующий тариф пользователя.
type StatusProvider interface {
	EffectiveStatus(ctx context.Context, userID int64) (models.Tier, *time.Time, error)
}

// Pool выдаёт следующее соединение ротации.
type Pool interface {
	Next() (sessionpool.Conn, error)
}

// StoryClient выполняет операции с историями через одолженный RPC-клиент.
type StoryClient interface {
	Resolve(ctx context.Context, api *tg.Client, username string) (tg.InputPeerClass, error)
	ListStories(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) ([]telegram.StoryMeta, error)
	StoryByID(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, storyID int) (*telegram.Story, error)
	Download(ctx context.Context, api *tg.Client, story *telegram.Story, dest string) error
}

// Cache описывает методы кэширования метаданных историй.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Service реализует координатор загрузок.
type Service struct {
	repo        UserRepository
	status      StatusProvider
	pool        Pool
	client      StoryClient
	cache       Cache
	log         *slog.Logger
	downloadDir string
	now         func() time.Time

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewService создает новый экземпляр Service.
func NewService(repo UserRepository, status StatusProvider, pool Pool, client StoryClient, c Cache, downloadDir string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		status:      status,
		pool:        pool,
		client:      client,
		cache:       c,
		log:         log,
		downloadDir: downloadDir,
		now:         time.Now,
		limiters:    make(map[int64]*rate.Limiter),
	}
}

// ListStories возвращает метаданные текущих историй аккаунта,
// используя кеш как справочный источник.
func (s *Service) ListStories(ctx context.Context, account string) ([]telegram.StoryMeta, error) {
	const op = "downloader.ListStories"

	cacheKey := "stories:" + account
	var metas []telegram.StoryMeta
	if found, err := s.cache.Get(cacheKey, &metas); err == nil && found {
		return metas, nil
	}

	conn, err := s.pool.Next()
	if err != nil {
		return nil, err
	}
	peer, err := s.client.Resolve(ctx, conn.Raw(), account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metas, err = s.client.ListStories(ctx, conn.Raw(), peer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(cacheKey, metas, cache.Retention); err != nil {
		s.log.Warn("failed to cache stories", slog.String("account", account), sl.Err(err))
	}
	return metas, nil
}

// DownloadStory скачивает историю аккаунта в файл пользователя и
// возвращает путь к файлу. Предусловия проверяются по порядку:
// пользователь существует, квота не исчерпана, есть активная сессия,
// история существует. FLOOD_WAIT приводит к ожиданию указанного срока
// и повтору в пределах бюджета; любая другая ошибка бэкенда —
// ErrDownloadFailed без повтора.
func (s *Service) DownloadStory(ctx context.Context, userID int64, account string, storyID int) (string, error) {
	const op = "downloader.DownloadStory"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", subscription.ErrUserNotFound
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tier, _, err := s.status.EffectiveStatus(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	// Статус мог сбросить дневной счётчик — перечитываем запись.
	user, err = s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	policy := models.PolicyFor(tier)
	if !policy.AllowsDownload(user.DailyDownloads) {
		metrics.DownloadsTotal.WithLabelValues(string(tier), "quota_exceeded").Inc()
		return "", ErrQuotaExceeded
	}

	if err := s.limiterFor(userID, policy).Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	dest, err := s.fetchWithRetry(ctx, userID, account, storyID)
	if err != nil {
		if errors.Is(err, sessionpool.ErrNoActiveSessions) || errors.Is(err, telegram.ErrStoryNotFound) {
			metrics.DownloadsTotal.WithLabelValues(string(tier), "failed").Inc()
			return "", err
		}
		metrics.DownloadsTotal.WithLabelValues(string(tier), "failed").Inc()
		s.log.Error("download failed",
			slog.Int64("user_id", userID),
			slog.String("account", account),
			slog.Int("story_id", storyID),
			sl.Err(err))
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	user.DailyDownloads++
	user.TotalDownloads++
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.DownloadsTotal.WithLabelValues(string(tier), "success").Inc()
	s.log.Info("story downloaded",
		slog.Int64("user_id", userID),
		slog.String("account", account),
		slog.Int("story_id", storyID),
		slog.String("path", dest))
	return dest, nil
}

// fetchWithRetry выполняет выборку и скачивание истории, повторяя попытку
// после FLOOD_WAIT. На каждую попытку берётся свежая сессия из ротации.
func (s *Service) fetchWithRetry(ctx context.Context, userID int64, account string, storyID int) (string, error) {
	var waited time.Duration

	for attempt := 1; ; attempt++ {
		dest, err := s.fetchOnce(ctx, userID, account, storyID)
		if err == nil {
			return dest, nil
		}

		rl, ok := telegram.AsRateLimited(err)
		if !ok {
			return "", err
		}
		if attempt >= maxAttempts || waited+rl.RetryAfter > maxWaitBudget {
			return "", fmt.Errorf("rate limit retry budget exhausted after %d attempts: %w", attempt, err)
		}

		metrics.FloodWaitRetries.Inc()
		s.log.Warn("rate limited, retrying",
			slog.String("account", account),
			slog.Int("story_id", storyID),
			slog.Duration("wait", rl.RetryAfter),
			slog.Int("attempt", attempt))

		select {
		case <-time.After(rl.RetryAfter):
			waited += rl.RetryAfter
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (s *Service) fetchOnce(ctx context.Context, userID int64, account string, storyID int) (string, error) {
	conn, err := s.pool.Next()
	if err != nil {
		return "", err
	}
	api := conn.Raw()

	peer, err := s.client.Resolve(ctx, api, account)
	if err != nil {
		return "", err
	}
	story, err := s.client.StoryByID(ctx, api, peer, storyID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.downloadDir, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%d_%d.%s", account, storyID, s.now().Unix(), story.Extension())
	dest := filepath.Join(dir, filename)

	if err := s.client.Download(ctx, api, story, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// limiterFor возвращает ограничитель темпа загрузок пользователя,
// обновляя интервал при смене тарифа.
func (s *Service) limiterFor(userID int64, policy models.TierPolicy) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := rate.Every(policy.Delay)
	lim, ok := s.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(limit, 1)
		s.limiters[userID] = lim
		return lim
	}
	if lim.Limit() != limit {
		lim.SetLimit(limit)
	}
	return lim
}
