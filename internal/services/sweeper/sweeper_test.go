package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/leonidvolkov/storygram/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) SaveUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) PruneStale(ctx context.Context, pattern string, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, pattern, olderThan)
	return args.Int(0), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) NotifyDowngrade(notice models.DowngradeNotice) error {
	return m.Called(notice).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestService(repo UserRepository, c Cache, n Notifier, now time.Time) *Service {
	s := NewService(repo, c, n, newNoopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 5, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	stale := &models.User{ID: 1, Username: "stale", Tier: models.TierFree,
		DailyDownloads: 5, LastReset: now.Add(-26 * time.Hour)}
	fresh := &models.User{ID: 2, Username: "fresh", Tier: models.TierFree,
		DailyDownloads: 2, LastReset: now.Add(-time.Hour)}
	expired := &models.User{ID: 3, Username: "expired", Tier: models.TierPremium,
		SubscriptionEnds: &past, LastReset: now.Add(-time.Hour)}
	active := &models.User{ID: 4, Username: "active", Tier: models.TierUltra,
		SubscriptionEnds: &future, LastReset: now.Add(-time.Hour)}

	repo := new(RepoMock)
	repo.On("ListUsers", mock.Anything).Return([]*models.User{stale, fresh, expired, active}, nil)
	repo.On("SaveUser", mock.Anything, mock.Anything).Return(nil)

	cacheMock := new(CacheMock)
	cacheMock.On("PruneStale", mock.Anything, "stories:*", mock.Anything).Return(7, nil).Once()

	notifier := new(NotifierMock)
	notifier.On("NotifyDowngrade", models.DowngradeNotice{
		UserID: 3, Username: "expired", Tier: "premium",
	}).Return(nil).Once()

	svc := newTestService(repo, cacheMock, notifier, now)
	svc.RunOnce(context.Background())

	assert.Equal(t, 0, stale.DailyDownloads)
	assert.Equal(t, now, stale.LastReset)
	assert.Equal(t, 2, fresh.DailyDownloads, "fresh counter untouched")

	assert.Equal(t, models.TierFree, expired.Tier)
	assert.Nil(t, expired.SubscriptionEnds)
	assert.Equal(t, models.TierUltra, active.Tier, "active subscription untouched")

	notifier.AssertExpectations(t)
	cacheMock.AssertExpectations(t)
}

func TestRunOnce_NotifyFailureSwallowed(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 5, 0, time.UTC)
	past := now.Add(-time.Hour)
	expired := &models.User{ID: 5, Username: "x", Tier: models.TierPremium,
		SubscriptionEnds: &past, LastReset: now}

	repo := new(RepoMock)
	repo.On("ListUsers", mock.Anything).Return([]*models.User{expired}, nil)
	repo.On("SaveUser", mock.Anything, mock.Anything).Return(nil)

	cacheMock := new(CacheMock)
	cacheMock.On("PruneStale", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	notifier := new(NotifierMock)
	notifier.On("NotifyDowngrade", mock.Anything).Return(errors.New("broker down"))

	svc := newTestService(repo, cacheMock, notifier, now)
	svc.RunOnce(context.Background())

	// Понижение сохранено несмотря на недоставленное уведомление.
	assert.Equal(t, models.TierFree, expired.Tier)
	repo.AssertCalled(t, "SaveUser", mock.Anything, expired)
}

func TestRunOnce_PhasesIndependent(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 5, 0, time.UTC)

	repo := new(RepoMock)
	repo.On("ListUsers", mock.Anything).Return(nil, errors.New("db down"))

	cacheMock := new(CacheMock)
	cacheMock.On("PruneStale", mock.Anything, mock.Anything, mock.Anything).Return(3, nil).Once()

	notifier := new(NotifierMock)

	// Отказ хранилища не мешает фазе очистки кеша.
	svc := newTestService(repo, cacheMock, notifier, now)
	svc.RunOnce(context.Background())

	cacheMock.AssertExpectations(t)
	notifier.AssertNotCalled(t, "NotifyDowngrade", mock.Anything)
}
