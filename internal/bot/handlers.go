package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/lib/storyurl"
	"github.com/leonidvolkov/storygram/internal/models"
	"github.com/leonidvolkov/storygram/internal/services/downloader"
	"github.com/leonidvolkov/storygram/internal/services/subscription"
	"github.com/leonidvolkov/storygram/internal/sessionpool"
	"github.com/leonidvolkov/storygram/internal/telegram"
)

const handlerTimeout = 10 * time.Minute

const helpText = `Отправьте ссылку на историю вида t.me/аккаунт/s/123 — бот скачает её и пришлёт файлом.
Отправьте @аккаунт, чтобы посмотреть список активных историй.

Команды:
/myplan — текущий тариф и остаток лимита
/redeem КОД — активировать код подписки
/follow аккаунт — добавить аккаунт в отслеживаемые
/unfollow аккаунт — убрать аккаунт
/following — список отслеживаемых
/settings — текущие настройки
/silent — переключить тихий режим доставки`

func (b *Bot) onStart(c tele.Context) error {
	return c.Send("Привет! Я скачиваю истории из публичных телеграм-аккаунтов.\n\n" + helpText)
}

func (b *Bot) onHelp(c tele.Context) error {
	return c.Send(helpText)
}

func (b *Bot) onMyPlan(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := c.Sender().ID
	tier, ends, err := b.subs.EffectiveStatus(ctx, userID)
	if err != nil {
		b.log.Error("failed to resolve status", slog.Int64("user_id", userID), sl.Err(err))
		return c.Send("Не удалось получить сведения о тарифе, попробуйте позже.")
	}

	remaining, err := b.subs.RemainingToday(ctx, userID)
	if err != nil {
		b.log.Error("failed to count remaining quota", slog.Int64("user_id", userID), sl.Err(err))
		return c.Send("Не удалось получить сведения о тарифе, попробуйте позже.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Тариф: %s\n", tier)
	if ends != nil {
		fmt.Fprintf(&sb, "Действует до: %s\n", ends.Format("02.01.2006 15:04"))
	}
	if remaining < 0 {
		sb.WriteString("Загрузки сегодня: без ограничений")
	} else {
		fmt.Fprintf(&sb, "Осталось загрузок сегодня: %d", remaining)
	}
	return c.Send(sb.String())
}

func (b *Bot) onRedeem(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Использование: /redeem КОД")
	}

	userID := c.Sender().ID
	code, err := b.subs.RedeemCode(ctx, userID, args[0])
	switch {
	case errors.Is(err, subscription.ErrInvalidCode):
		return c.Send("Такого кода не существует.")
	case errors.Is(err, subscription.ErrCodeExpired):
		return c.Send("Срок действия кода истёк.")
	case errors.Is(err, subscription.ErrCodeExhausted):
		return c.Send("Код уже использован максимальное число раз.")
	case err != nil:
		b.log.Error("failed to redeem code", slog.Int64("user_id", userID), sl.Err(err))
		return c.Send("Не удалось активировать код, попробуйте позже.")
	}

	return c.Send(fmt.Sprintf("Код активирован! Тариф %s на %d дн.",
		code.Tier, code.DurationDays))
}

func (b *Bot) onFollow(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Использование: /follow аккаунт")
	}
	account := strings.TrimPrefix(args[0], "@")

	if err := b.subs.FollowAccount(ctx, c.Sender().ID, account); err != nil {
		b.log.Error("failed to follow account", slog.Int64("user_id", c.Sender().ID), sl.Err(err))
		return c.Send("Не удалось сохранить аккаунт, попробуйте позже.")
	}
	return c.Send("Аккаунт @" + account + " добавлен в отслеживаемые.")
}

func (b *Bot) onUnfollow(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Использование: /unfollow аккаунт")
	}
	account := strings.TrimPrefix(args[0], "@")

	if err := b.subs.UnfollowAccount(ctx, c.Sender().ID, account); err != nil {
		b.log.Error("failed to unfollow account", slog.Int64("user_id", c.Sender().ID), sl.Err(err))
		return c.Send("Не удалось обновить список, попробуйте позже.")
	}
	return c.Send("Аккаунт @" + account + " убран из отслеживаемых.")
}

func (b *Bot) onFollowing(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	user, err := b.subs.RegisterUser(ctx, c.Sender().ID, c.Sender().Username)
	if err != nil {
		b.log.Error("failed to load user", slog.Int64("user_id", c.Sender().ID), sl.Err(err))
		return c.Send("Не удалось получить список, попробуйте позже.")
	}
	if len(user.FollowedAccounts) == 0 {
		return c.Send("Список отслеживаемых пуст. Добавьте аккаунт командой /follow.")
	}

	var sb strings.Builder
	sb.WriteString("Отслеживаемые аккаунты:\n")
	for _, account := range user.FollowedAccounts {
		sb.WriteString("@" + account + "\n")
	}
	return c.Send(sb.String())
}

func (b *Bot) onSilent(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	user, err := b.subs.RegisterUser(ctx, c.Sender().ID, c.Sender().Username)
	if err != nil {
		b.log.Error("failed to load user", slog.Int64("user_id", c.Sender().ID), sl.Err(err))
		return c.Send("Не удалось обновить настройки, попробуйте позже.")
	}

	settings := user.Settings
	settings.SilentMode = !settings.SilentMode
	if err := b.subs.UpdateSettings(ctx, c.Sender().ID, settings); err != nil {
		b.log.Error("failed to update settings", slog.Int64("user_id", c.Sender().ID), sl.Err(err))
		return c.Send("Не удалось обновить настройки, попробуйте позже.")
	}

	if settings.SilentMode {
		return c.Send("Тихий режим включён: файлы будут приходить без звука.")
	}
	return c.Send("Тихий режим выключен.")
}

func (b *Bot) onSettings(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	user, err := b.subs.RegisterUser(ctx, c.Sender().ID, c.Sender().Username)
	if err != nil {
		b.log.Error("failed to load user", slog.Int64("user_id", c.Sender().ID), sl.Err(err))
		return c.Send("Не удалось получить настройки, попробуйте позже.")
	}

	silent := "выключен"
	if user.Settings.SilentMode {
		silent = "включён"
	}
	quality := user.Settings.Quality
	if quality == "" {
		quality = "best"
	}
	return c.Send(fmt.Sprintf("Настройки:\nТихий режим: %s (/silent)\nКачество: %s", silent, quality))
}

// onText разбирает свободный ввод: @аккаунт показывает список историй,
// ссылка t.me запускает загрузку.
func (b *Bot) onText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())

	if strings.HasPrefix(text, "@") {
		return b.listStories(c, strings.TrimPrefix(text, "@"))
	}

	account, storyID, err := storyurl.Parse(text)
	if err != nil {
		return c.Send("Не понимаю. Отправьте ссылку на историю или @аккаунт. Справка: /help")
	}
	return b.downloadStory(c, account, storyID)
}

func (b *Bot) listStories(c tele.Context, account string) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	stories, err := b.dl.ListStories(ctx, account)
	if err != nil {
		return c.Send(b.renderError(err))
	}
	if len(stories) == 0 {
		return c.Send("У @" + account + " нет активных историй.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Активные истории @%s:\n", account)
	for _, story := range stories {
		fmt.Fprintf(&sb, "t.me/%s/s/%d — %s, %s\n",
			account, story.ID, story.Kind, story.Date.Format("02.01 15:04"))
	}
	return c.Send(sb.String())
}

func (b *Bot) downloadStory(c tele.Context, account string, storyID int) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	userID := c.Sender().ID

	tier, _, err := b.subs.EffectiveStatus(ctx, userID)
	if err != nil {
		b.log.Error("failed to resolve status", slog.Int64("user_id", userID), sl.Err(err))
		return c.Send("Не удалось проверить тариф, попробуйте позже.")
	}
	policy := models.PolicyFor(tier)

	taskID, ok := b.tasks.Acquire(userID, policy.Concurrent)
	if !ok {
		return c.Send("Слишком много одновременных загрузок. Дождитесь завершения текущих.")
	}
	defer b.tasks.Release(userID, taskID)

	if err := c.Send("Скачиваю историю..."); err != nil {
		b.log.Warn("failed to send progress message", sl.Err(err))
	}

	path, err := b.dl.DownloadStory(ctx, userID, account, storyID)
	if err != nil {
		b.log.Info("download failed",
			slog.Int64("user_id", userID),
			slog.String("account", account),
			slog.Int("story_id", storyID),
			sl.Err(err))
		return c.Send(b.renderError(err))
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			b.log.Warn("failed to remove downloaded file", slog.String("path", path), sl.Err(err))
		}
	}()

	user, err := b.subs.RegisterUser(ctx, userID, c.Sender().Username)
	if err != nil {
		b.log.Error("failed to load user settings", slog.Int64("user_id", userID), sl.Err(err))
	}

	opts := &tele.SendOptions{}
	if user != nil && user.Settings.SilentMode {
		opts.DisableNotification = true
	}

	file := tele.FromDisk(path)
	caption := fmt.Sprintf("@%s, история %d", account, storyID)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return c.Send(&tele.Photo{File: file, Caption: caption}, opts)
	case ".mp4", ".mov":
		return c.Send(&tele.Video{File: file, Caption: caption}, opts)
	default:
		return c.Send(&tele.Document{File: file, FileName: filepath.Base(path), Caption: caption}, opts)
	}
}

// renderError переводит типизированные ошибки сервисов в ответ пользователю.
func (b *Bot) renderError(err error) string {
	switch {
	case errors.Is(err, downloader.ErrQuotaExceeded):
		return "Дневной лимит загрузок исчерпан. Лимит обновится в полночь, либо активируйте код: /redeem"
	case errors.Is(err, telegram.ErrStoryNotFound):
		return "История не найдена: она могла истечь или быть удалена."
	case errors.Is(err, telegram.ErrAccountNotFound):
		return "Аккаунт не найден. Проверьте имя и попробуйте снова."
	case errors.Is(err, sessionpool.ErrNoActiveSessions):
		return "Сервис временно недоступен, попробуйте позже."
	default:
		return "Не удалось выполнить запрос, попробуйте позже."
	}
}
