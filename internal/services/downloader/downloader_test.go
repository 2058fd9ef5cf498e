package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"golang.org/x/time/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leonidvolkov/storygram/internal/models"
	"github.com/leonidvolkov/storygram/internal/services/subscription"
	"github.com/leonidvolkov/storygram/internal/sessionpool"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
	"github.com/leonidvolkov/storygram/internal/telegram"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) SaveUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

type StatusMock struct{ mock.Mock }

func (m *StatusMock) EffectiveStatus(ctx context.Context, userID int64) (models.Tier, *time.Time, error) {
	args := m.Called(ctx, userID)
	var ends *time.Time
	if args.Get(1) != nil {
		ends = args.Get(1).(*time.Time)
	}
	return args.Get(0).(models.Tier), ends, args.Error(2)
}

type PoolMock struct{ mock.Mock }

func (m *PoolMock) Next() (sessionpool.Conn, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(sessionpool.Conn), args.Error(1)
}

type fakeConn struct{}

func (fakeConn) Raw() *tg.Client { return nil }
func (fakeConn) Stop() error     { return nil }

type ClientMock struct{ mock.Mock }

func (m *ClientMock) Resolve(ctx context.Context, api *tg.Client, username string) (tg.InputPeerClass, error) {
	args := m.Called(ctx, api, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tg.InputPeerClass), args.Error(1)
}
func (m *ClientMock) ListStories(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) ([]telegram.StoryMeta, error) {
	args := m.Called(ctx, api, peer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]telegram.StoryMeta), args.Error(1)
}
func (m *ClientMock) StoryByID(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, storyID int) (*telegram.Story, error) {
	args := m.Called(ctx, api, peer, storyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.Story), args.Error(1)
}
func (m *ClientMock) Download(ctx context.Context, api *tg.Client, story *telegram.Story, dest string) error {
	return m.Called(ctx, api, story, dest).Error(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func photoStory(id int) *telegram.Story {
	return &telegram.Story{
		ID:    id,
		Kind:  telegram.MediaPhoto,
		Media: &tg.MessageMediaPhoto{},
	}
}

type deps struct {
	repo   *RepoMock
	status *StatusMock
	pool   *PoolMock
	client *ClientMock
	cache  *CacheMock
}

func newTestService(t *testing.T, now time.Time) (*Service, deps) {
	t.Helper()
	d := deps{
		repo:   new(RepoMock),
		status: new(StatusMock),
		pool:   new(PoolMock),
		client: new(ClientMock),
		cache:  new(CacheMock),
	}
	svc := NewService(d.repo, d.status, d.pool, d.client, d.cache, t.TempDir(), newNoopLogger())
	svc.now = func() time.Time { return now }
	return svc, d
}

func TestDownloadStory_Success(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 1, Tier: models.TierFree, DailyDownloads: 2, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(1)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(1)).Return(models.TierFree, nil, nil)
	d.pool.On("Next").Return(fakeConn{}, nil)
	d.client.On("Resolve", mock.Anything, mock.Anything, "durov").Return(&tg.InputPeerUser{UserID: 7}, nil)
	d.client.On("StoryByID", mock.Anything, mock.Anything, mock.Anything, 5).Return(photoStory(5), nil)
	d.client.On("Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.repo.On("SaveUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.DailyDownloads == 3 && u.TotalDownloads == 1
	})).Return(nil).Once()

	dest, err := svc.DownloadStory(context.Background(), 1, "durov", 5)
	require.NoError(t, err)
	assert.Equal(t, "1", filepath.Base(filepath.Dir(dest)))
	assert.Equal(t, fmt.Sprintf("durov_5_%d.jpg", now.Unix()), filepath.Base(dest))
	d.repo.AssertExpectations(t)
}

func TestDownloadStory_QuotaExceeded(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 2, Tier: models.TierFree, DailyDownloads: 5, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(2)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(2)).Return(models.TierFree, nil, nil)

	_, err := svc.DownloadStory(context.Background(), 2, "durov", 5)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	d.pool.AssertNotCalled(t, "Next")
	d.repo.AssertNotCalled(t, "SaveUser", mock.Anything, mock.Anything)
}

func TestDownloadStory_UnknownUser(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	d.repo.On("GetUser", mock.Anything, int64(3)).Return(nil, repository.ErrNotFound)

	_, err := svc.DownloadStory(context.Background(), 3, "durov", 5)
	assert.ErrorIs(t, err, subscription.ErrUserNotFound)
}

func TestDownloadStory_NoSessions(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 4, Tier: models.TierFree, DailyDownloads: 0, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(4)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(4)).Return(models.TierFree, nil, nil)
	d.pool.On("Next").Return(nil, sessionpool.ErrNoActiveSessions)

	_, err := svc.DownloadStory(context.Background(), 4, "durov", 5)
	assert.ErrorIs(t, err, sessionpool.ErrNoActiveSessions)
	assert.NotErrorIs(t, err, ErrDownloadFailed)
	d.repo.AssertNotCalled(t, "SaveUser", mock.Anything, mock.Anything)
}

func TestDownloadStory_StoryNotFound(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 5, Tier: models.TierFree, DailyDownloads: 0, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(5)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(5)).Return(models.TierFree, nil, nil)
	d.pool.On("Next").Return(fakeConn{}, nil)
	d.client.On("Resolve", mock.Anything, mock.Anything, "durov").Return(&tg.InputPeerUser{UserID: 7}, nil)
	d.client.On("StoryByID", mock.Anything, mock.Anything, mock.Anything, 404).Return(nil, telegram.ErrStoryNotFound)

	_, err := svc.DownloadStory(context.Background(), 5, "durov", 404)
	assert.ErrorIs(t, err, telegram.ErrStoryNotFound)
	assert.NotErrorIs(t, err, ErrDownloadFailed)
}

func TestDownloadStory_RateLimitedThenSuccess(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 6, Tier: models.TierPremium, DailyDownloads: 0, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(6)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(6)).Return(models.TierPremium, nil, nil)
	d.pool.On("Next").Return(fakeConn{}, nil)
	d.client.On("Resolve", mock.Anything, mock.Anything, "durov").Return(&tg.InputPeerUser{UserID: 7}, nil)
	d.client.On("StoryByID", mock.Anything, mock.Anything, mock.Anything, 5).
		Return(nil, &telegram.RateLimited{RetryAfter: 10 * time.Millisecond}).Once()
	d.client.On("StoryByID", mock.Anything, mock.Anything, mock.Anything, 5).Return(photoStory(5), nil).Once()
	d.client.On("Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.repo.On("SaveUser", mock.Anything, mock.Anything).Return(nil)

	dest, err := svc.DownloadStory(context.Background(), 6, "durov", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, dest)
	// Каждая попытка берёт свежую сессию из ротации.
	d.pool.AssertNumberOfCalls(t, "Next", 2)
}

func TestDownloadStory_RateLimitBudgetExhausted(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 7, Tier: models.TierPremium, DailyDownloads: 0, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(7)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(7)).Return(models.TierPremium, nil, nil)
	d.pool.On("Next").Return(fakeConn{}, nil)
	d.client.On("Resolve", mock.Anything, mock.Anything, "durov").Return(&tg.InputPeerUser{UserID: 7}, nil)
	d.client.On("StoryByID", mock.Anything, mock.Anything, mock.Anything, 5).
		Return(nil, &telegram.RateLimited{RetryAfter: time.Millisecond})

	_, err := svc.DownloadStory(context.Background(), 7, "durov", 5)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	d.client.AssertNumberOfCalls(t, "StoryByID", 3)
	d.repo.AssertNotCalled(t, "SaveUser", mock.Anything, mock.Anything)
}

func TestDownloadStory_RateLimitOverWaitBudget(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, d := newTestService(t, now)

	user := &models.User{ID: 8, Tier: models.TierUltra, DailyDownloads: 0, LastReset: now}
	d.repo.On("GetUser", mock.Anything, int64(8)).Return(user, nil)
	d.status.On("EffectiveStatus", mock.Anything, int64(8)).Return(models.TierUltra, nil, nil)
	d.pool.On("Next").Return(fakeConn{}, nil)
	d.client.On("Resolve", mock.Anything, mock.Anything, "durov").Return(&tg.InputPeerUser{UserID: 7}, nil)
	d.client.On("StoryByID", mock.Anything, mock.Anything, mock.Anything, 5).
		Return(nil, &telegram.RateLimited{RetryAfter: time.Hour})

	// Ожидание сверх бюджета отбрасывается сразу, без сна на час.
	start := time.Now()
	_, err := svc.DownloadStory(context.Background(), 8, "durov", 5)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
	d.client.AssertNumberOfCalls(t, "StoryByID", 1)
}

func TestListStories(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("cache hit skips backend", func(t *testing.T) {
		svc, d := newTestService(t, now)
		cached := []telegram.StoryMeta{{ID: 1, Kind: telegram.MediaPhoto}}
		d.cache.On("Get", "stories:durov", mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(1).(*[]telegram.StoryMeta) = cached
			}).Return(true, nil).Once()

		metas, err := svc.ListStories(context.Background(), "durov")
		require.NoError(t, err)
		assert.Equal(t, cached, metas)
		d.pool.AssertNotCalled(t, "Next")
	})

	t.Run("cache miss fetches and stores", func(t *testing.T) {
		svc, d := newTestService(t, now)
		fetched := []telegram.StoryMeta{{ID: 2, Kind: telegram.MediaDocument}}
		d.cache.On("Get", "stories:durov", mock.Anything).Return(false, nil).Once()
		d.pool.On("Next").Return(fakeConn{}, nil)
		d.client.On("Resolve", mock.Anything, mock.Anything, "durov").Return(&tg.InputPeerUser{UserID: 7}, nil)
		d.client.On("ListStories", mock.Anything, mock.Anything, mock.Anything).Return(fetched, nil)
		d.cache.On("Set", "stories:durov", fetched, mock.Anything).Return(nil).Once()

		metas, err := svc.ListStories(context.Background(), "durov")
		require.NoError(t, err)
		assert.Equal(t, fetched, metas)
		d.cache.AssertExpectations(t)
	})

	t.Run("account not resolved", func(t *testing.T) {
		svc, d := newTestService(t, now)
		d.cache.On("Get", "stories:ghost", mock.Anything).Return(false, nil).Once()
		d.pool.On("Next").Return(fakeConn{}, nil)
		d.client.On("Resolve", mock.Anything, mock.Anything, "ghost").Return(nil, telegram.ErrAccountNotFound)

		_, err := svc.ListStories(context.Background(), "ghost")
		assert.ErrorIs(t, err, telegram.ErrAccountNotFound)
	})
}

func TestLimiterFor_TierChange(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)

	free := svc.limiterFor(1, models.PolicyFor(models.TierFree))
	premium := svc.limiterFor(1, models.PolicyFor(models.TierPremium))

	// Ограничитель переживает смену тарифа, меняется только интервал.
	assert.Same(t, free, premium)
	assert.Equal(t, rate.Every(2*time.Second), premium.Limit())
}
