package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leonidvolkov/storygram/internal/models"
)

// GetCode возвращает код активации по токену. Отсутствие записи — ErrNotFound.
func (s *Storage) GetCode(ctx context.Context, token string) (*models.SubscriptionCode, error) {
	const op = "repository.GetCode"

	query := `SELECT token, tier, duration_days, max_uses, used_count, created_at, expires_at
			  FROM subscription_codes
			  WHERE token = $1`
	c := &models.SubscriptionCode{}
	row := s.DB.QueryRowContext(ctx, query, token)

	var (
		tier      string
		expiresAt sql.NullTime
	)
	if err := row.Scan(&c.Token, &tier, &c.DurationDays, &c.MaxUses, &c.UsedCount,
		&c.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.Tier = models.ParseTier(tier)
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	return c, nil
}

// SaveCode сохраняет код активации целиком, создавая запись при отсутствии.
func (s *Storage) SaveCode(ctx context.Context, code *models.SubscriptionCode) error {
	const op = "repository.SaveCode"

	var expiresAt sql.NullTime
	if code.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *code.ExpiresAt, Valid: true}
	}

	query := `INSERT INTO subscription_codes (token, tier, duration_days, max_uses,
			      used_count, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (token) DO UPDATE SET
			      used_count = EXCLUDED.used_count`
	if _, err := s.DB.ExecContext(ctx, query,
		code.Token, string(code.Tier), code.DurationDays, code.MaxUses,
		code.UsedCount, code.CreatedAt, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountCodes возвращает количество выпущенных кодов активации.
func (s *Storage) CountCodes(ctx context.Context) (int, error) {
	const op = "repository.CountCodes"

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscription_codes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
