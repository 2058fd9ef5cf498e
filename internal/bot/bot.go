// Package bot реализует телеграм-интерфейс: команды, приём ссылок на
// истории и администраторские операции. Пакет потребляет движок подписок
// и координатор загрузок только через их публичные операции.
package bot

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/leonidvolkov/storygram/internal/config"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/services/downloader"
	"github.com/leonidvolkov/storygram/internal/services/subscription"
	"github.com/leonidvolkov/storygram/internal/services/tasks"
	"github.com/leonidvolkov/storygram/internal/sessionpool"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
)

// Bot связывает телеграм-обработчики с бизнес-логикой.
type Bot struct {
	tb     *tele.Bot
	subs   *subscription.Service
	dl     *downloader.Service
	pool   *sessionpool.Pool
	tasks  *tasks.Registry
	store  *repository.Storage
	log    *slog.Logger
	admins map[int64]struct{}
}

// New создаёт бота с длинным опросом и регистрирует обработчики.
func New(cfg *config.Config, subs *subscription.Service, dl *downloader.Service,
	pool *sessionpool.Pool, registry *tasks.Registry, store *repository.Storage,
	log *slog.Logger) (*Bot, error) {

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}

	b := &Bot{
		tb:     tb,
		subs:   subs,
		dl:     dl,
		pool:   pool,
		tasks:  registry,
		store:  store,
		log:    log,
		admins: admins,
	}
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerHandlers() {
	b.tb.Use(b.ensureUser)

	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/help", b.onHelp)
	b.tb.Handle("/myplan", b.onMyPlan)
	b.tb.Handle("/redeem", b.onRedeem)
	b.tb.Handle("/follow", b.onFollow)
	b.tb.Handle("/unfollow", b.onUnfollow)
	b.tb.Handle("/following", b.onFollowing)
	b.tb.Handle("/settings", b.onSettings)
	b.tb.Handle("/silent", b.onSilent)

	b.tb.Handle("/gencode", b.adminOnly(b.onGenCode))
	b.tb.Handle("/sessions", b.adminOnly(b.onSessions))
	b.tb.Handle("/addsession", b.adminOnly(b.onAddSession))
	b.tb.Handle("/delsession", b.adminOnly(b.onDelSession))
	b.tb.Handle("/stats", b.adminOnly(b.onStats))
	b.tb.Handle("/broadcast", b.adminOnly(b.onBroadcast))

	b.tb.Handle(tele.OnText, b.onText)
}

// Start запускает длинный опрос. Блокирует до Stop.
func (b *Bot) Start() {
	b.log.Info("bot started", slog.String("username", b.tb.Me.Username))
	b.tb.Start()
}

// Stop останавливает опрос.
func (b *Bot) Stop() {
	b.tb.Stop()
}

// SendMessage отправляет текст пользователю. Используется сервисом
// уведомлений и рассылкой.
func (b *Bot) SendMessage(userID int64, text string) error {
	_, err := b.tb.Send(&tele.User{ID: userID}, text)
	return err
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

func (b *Bot) adminOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.isAdmin(c.Sender().ID) {
			return c.Send("Доступ запрещён.")
		}
		return next(c)
	}
}

// ensureUser создаёт запись пользователя при первом обращении.
func (b *Bot) ensureUser(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}
		username := sender.Username
		if username == "" {
			username = sender.FirstName
		}
		if _, err := b.subs.RegisterUser(context.Background(), sender.ID, username); err != nil {
			b.log.Error("failed to register user", slog.Int64("user_id", sender.ID), sl.Err(err))
		}
		return next(c)
	}
}
