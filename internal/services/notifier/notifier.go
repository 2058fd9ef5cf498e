// Package notifier доставляет уведомления о понижении тарифа из очереди
// брокера в личные сообщения пользователей.
package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/models"
)

// MessageSender отправляет текстовое сообщение пользователю Telegram.
type MessageSender interface {
	SendMessage(userID int64, text string) error
}

// Service потребляет сообщения о понижении тарифа.
type Service struct {
	sender MessageSender
	log    *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(sender MessageSender, log *slog.Logger) *Service {
	return &Service{sender: sender, log: log}
}

// HandleDowngrade обрабатывает одно сообщение очереди downgrade_queue.
// Ошибка возврата приводит к nack с повторной постановкой.
func (s *Service) HandleDowngrade(body []byte) error {
	var notice models.DowngradeNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	text := fmt.Sprintf("Ваша подписка %s истекла, тариф понижен до Free.", notice.Tier)
	if err := s.sender.SendMessage(notice.UserID, text); err != nil {
		s.log.Error("failed to deliver downgrade notice",
			slog.Int64("user_id", notice.UserID), sl.Err(err))
		return fmt.Errorf("failed to deliver downgrade notice: %w", err)
	}

	s.log.Info("downgrade notice delivered", slog.Int64("user_id", notice.UserID))
	return nil
}
