package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/leonidvolkov/storygram/internal/models"
)

// NotificationPublisher публикует уведомления бота в exchange уведомлений.
type NotificationPublisher struct {
	ch *amqp.Channel
}

// NewNotificationPublisher создаёт издателя поверх открытого канала.
func NewNotificationPublisher(ch *amqp.Channel) *NotificationPublisher {
	return &NotificationPublisher{ch: ch}
}

// NotifyDowngrade публикует уведомление о понижении тарифа.
func (p *NotificationPublisher) NotifyDowngrade(notice models.DowngradeNotice) error {
	const op = "rabbitmq.NotifyDowngrade"
	if err := PublishMessage(p.ch, Exchange, "downgrade", notice); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
