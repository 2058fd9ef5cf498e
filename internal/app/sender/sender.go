// Package sender собирает приложение доставки уведомлений: читает очередь
// брокера и отправляет сообщения пользователям через Bot API.
package sender

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"
	tele "gopkg.in/telebot.v3"

	"github.com/leonidvolkov/storygram/internal/config"
	"github.com/leonidvolkov/storygram/internal/rabbitmq"
	notifierservice "github.com/leonidvolkov/storygram/internal/services/notifier"
)

// App представляет приложение доставки уведомлений.
type App struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	notifierService *notifierservice.Service
	logger          *slog.Logger
}

// botSender отправляет сообщения через Bot API.
type botSender struct {
	tb *tele.Bot
}

func (s *botSender) SendMessage(userID int64, text string) error {
	_, err := s.tb.Send(&tele.User{ID: userID}, text)
	return err
}

// New создает новый экземпляр приложения доставки уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		return nil, err
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	notifierService := notifierservice.NewService(&botSender{tb: tb}, logger)

	return &App{
		conn:            conn,
		ch:              ch,
		notifierService: notifierService,
		logger:          logger,
	}, nil
}

// Run запускает потребителя очереди уведомлений.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "downgrade_queue", a.notifierService.HandleDowngrade)
	if err != nil {
		a.logger.Error("failed to start downgrade_queue consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
