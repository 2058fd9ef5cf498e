package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leonidvolkov/storygram/internal/models"
)

// ErrNotFound возвращается, когда запись с указанным ключом отсутствует.
var ErrNotFound = errors.New("record not found")

// GetUser возвращает пользователя по телеграмному ID.
// Отсутствие записи — ErrNotFound.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "repository.GetUser"

	query := `SELECT id, username, tier, subscription_ends, daily_downloads,
			      total_downloads, last_reset, followed_accounts, settings
			  FROM users
			  WHERE id = $1`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, userID)

	var (
		tier             string
		subscriptionEnds sql.NullTime
		followedRaw      []byte
		settingsRaw      []byte
	)
	if err := row.Scan(&u.ID, &u.Username, &tier, &subscriptionEnds, &u.DailyDownloads,
		&u.TotalDownloads, &u.LastReset, &followedRaw, &settingsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u.Tier = models.ParseTier(tier)
	if subscriptionEnds.Valid {
		t := subscriptionEnds.Time
		u.SubscriptionEnds = &t
	}
	if err := json.Unmarshal(followedRaw, &u.FollowedAccounts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(settingsRaw, &u.Settings); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SaveUser сохраняет запись пользователя целиком, создавая её при отсутствии.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "repository.SaveUser"

	followedRaw, err := json.Marshal(user.FollowedAccounts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	settingsRaw, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var subscriptionEnds sql.NullTime
	if user.SubscriptionEnds != nil {
		subscriptionEnds = sql.NullTime{Time: *user.SubscriptionEnds, Valid: true}
	}

	query := `INSERT INTO users (id, username, tier, subscription_ends, daily_downloads,
			      total_downloads, last_reset, followed_accounts, settings)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (id) DO UPDATE SET
			      username = EXCLUDED.username,
			      tier = EXCLUDED.tier,
			      subscription_ends = EXCLUDED.subscription_ends,
			      daily_downloads = EXCLUDED.daily_downloads,
			      total_downloads = EXCLUDED.total_downloads,
			      last_reset = EXCLUDED.last_reset,
			      followed_accounts = EXCLUDED.followed_accounts,
			      settings = EXCLUDED.settings`
	if _, err := s.DB.ExecContext(ctx, query,
		user.ID, user.Username, string(user.Tier), subscriptionEnds, user.DailyDownloads,
		user.TotalDownloads, user.LastReset, followedRaw, settingsRaw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsers возвращает всех пользователей. Используется ежедневной чисткой.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "repository.ListUsers"

	query := `SELECT id, username, tier, subscription_ends, daily_downloads,
			      total_downloads, last_reset, followed_accounts, settings
			  FROM users
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var (
			tier             string
			subscriptionEnds sql.NullTime
			followedRaw      []byte
			settingsRaw      []byte
		)
		if err := rows.Scan(&u.ID, &u.Username, &tier, &subscriptionEnds, &u.DailyDownloads,
			&u.TotalDownloads, &u.LastReset, &followedRaw, &settingsRaw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.Tier = models.ParseTier(tier)
		if subscriptionEnds.Valid {
			t := subscriptionEnds.Time
			u.SubscriptionEnds = &t
		}
		if err := json.Unmarshal(followedRaw, &u.FollowedAccounts); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := json.Unmarshal(settingsRaw, &u.Settings); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// UserStats содержит агрегированные счётчики для администраторской статистики.
type UserStats struct {
	TotalUsers     int `json:"total_users"`
	FreeUsers      int `json:"free_users"`
	PremiumUsers   int `json:"premium_users"`
	UltraUsers     int `json:"ultra_users"`
	TotalDownloads int `json:"total_downloads"`
}

// CountUserStats возвращает агрегированные счётчики по всем пользователям.
func (s *Storage) CountUserStats(ctx context.Context) (*UserStats, error) {
	const op = "repository.CountUserStats"

	query := `SELECT COUNT(*),
			      COUNT(*) FILTER (WHERE tier = 'free'),
			      COUNT(*) FILTER (WHERE tier = 'premium'),
			      COUNT(*) FILTER (WHERE tier = 'ultra'),
			      COALESCE(SUM(total_downloads), 0)
			  FROM users`
	stats := &UserStats{}
	if err := s.DB.QueryRowContext(ctx, query).Scan(&stats.TotalUsers, &stats.FreeUsers,
		&stats.PremiumUsers, &stats.UltraUsers, &stats.TotalDownloads); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
