package repository

import (
	"context"
	"fmt"

	"github.com/leonidvolkov/storygram/internal/models"
)

// ListSessions возвращает все сохранённые записи сессий.
// Используется при старте для восстановления пула.
func (s *Storage) ListSessions(ctx context.Context) ([]*models.SessionRecord, error) {
	const op = "repository.ListSessions"

	query := `SELECT name, string_session, added_at
			  FROM sessions
			  ORDER BY added_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.SessionRecord
	for rows.Next() {
		r := &models.SessionRecord{}
		if err := rows.Scan(&r.Name, &r.StringSession, &r.AddedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

// SaveSession сохраняет запись сессии; одноимённая запись перезаписывается.
func (s *Storage) SaveSession(ctx context.Context, record *models.SessionRecord) error {
	const op = "repository.SaveSession"

	query := `INSERT INTO sessions (name, string_session, added_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (name) DO UPDATE SET
			      string_session = EXCLUDED.string_session,
			      added_at = EXCLUDED.added_at`
	if _, err := s.DB.ExecContext(ctx, query,
		record.Name, record.StringSession, record.AddedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteSession удаляет запись сессии. Возвращает ErrNotFound, если имя неизвестно.
func (s *Storage) DeleteSession(ctx context.Context, name string) error {
	const op = "repository.DeleteSession"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
