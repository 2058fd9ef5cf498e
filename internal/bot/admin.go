package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/models"
)

func (b *Bot) onGenCode(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) < 2 || len(args) > 4 {
		return c.Send("Использование: /gencode тариф дни [использований] [дней_до_истечения]")
	}

	tierArg := strings.ToLower(args[0])
	switch models.Tier(tierArg) {
	case models.TierFree, models.TierPremium, models.TierUltra:
	default:
		return c.Send("Неизвестный тариф: " + args[0])
	}
	tier := models.ParseTier(tierArg)

	durationDays, err := strconv.Atoi(args[1])
	if err != nil || durationDays <= 0 {
		return c.Send("Длительность должна быть положительным числом дней.")
	}

	maxUses := 1
	if len(args) >= 3 {
		maxUses, err = strconv.Atoi(args[2])
		if err != nil || maxUses <= 0 {
			return c.Send("Число использований должно быть положительным.")
		}
	}

	var expiresInDays *int
	if len(args) == 4 {
		days, err := strconv.Atoi(args[3])
		if err != nil || days <= 0 {
			return c.Send("Срок жизни кода должен быть положительным числом дней.")
		}
		expiresInDays = &days
	}

	code, err := b.subs.IssueCode(ctx, tier, durationDays, maxUses, expiresInDays)
	if err != nil {
		b.log.Error("failed to issue code", sl.Err(err))
		return c.Send("Не удалось создать код.")
	}

	return c.Send(fmt.Sprintf("Код: %s\nТариф: %s на %d дн., использований: %d",
		code.Token, code.Tier, code.DurationDays, code.MaxUses))
}

func (b *Bot) onSessions(c tele.Context) error {
	names := b.pool.Names()
	if len(names) == 0 {
		return c.Send("Активных сессий нет.")
	}
	return c.Send("Активные сессии:\n" + strings.Join(names, "\n"))
}

func (b *Bot) onAddSession(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) != 2 {
		return c.Send("Использование: /addsession имя строка_сессии")
	}
	name, stringSession := args[0], args[1]

	if err := b.pool.Register(ctx, name, stringSession); err != nil {
		b.log.Error("failed to register session", slog.String("session", name), sl.Err(err))
		return c.Send("Не удалось подключить сессию: " + err.Error())
	}

	record := &models.SessionRecord{Name: name, StringSession: stringSession, AddedAt: time.Now().UTC()}
	if err := b.store.SaveSession(ctx, record); err != nil {
		b.log.Error("failed to persist session", slog.String("session", name), sl.Err(err))
		return c.Send("Сессия подключена, но не сохранена в базе.")
	}

	return c.Send("Сессия " + name + " подключена и сохранена.")
}

func (b *Bot) onDelSession(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Использование: /delsession имя")
	}
	name := args[0]

	removed := b.pool.Deregister(name)
	if err := b.store.DeleteSession(ctx, name); err != nil {
		b.log.Warn("failed to delete session record", slog.String("session", name), sl.Err(err))
	}
	if !removed {
		return c.Send("Сессия " + name + " не найдена в пуле.")
	}
	return c.Send("Сессия " + name + " отключена.")
}

func (b *Bot) onStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	stats, err := b.store.CountUserStats(ctx)
	if err != nil {
		b.log.Error("failed to count user stats", sl.Err(err))
		return c.Send("Не удалось собрать статистику.")
	}
	codes, err := b.store.CountCodes(ctx)
	if err != nil {
		b.log.Error("failed to count codes", sl.Err(err))
		return c.Send("Не удалось собрать статистику.")
	}

	return c.Send(fmt.Sprintf(
		"Пользователи: %d (free %d / premium %d / ultra %d)\nЗагрузок всего: %d\nКодов выпущено: %d\nСессий в пуле: %d\nАктивных загрузок: %d",
		stats.TotalUsers, stats.FreeUsers, stats.PremiumUsers, stats.UltraUsers,
		stats.TotalDownloads, codes, b.pool.Len(), b.tasks.Total()))
}

func (b *Bot) onBroadcast(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	text := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/broadcast"))
	if text == "" {
		return c.Send("Использование: /broadcast текст")
	}

	users, err := b.store.ListUsers(ctx)
	if err != nil {
		b.log.Error("failed to list users", sl.Err(err))
		return c.Send("Не удалось получить список пользователей.")
	}

	sent := 0
	for _, user := range users {
		if err := b.SendMessage(user.ID, text); err != nil {
			b.log.Warn("failed to deliver broadcast", slog.Int64("user_id", user.ID), sl.Err(err))
			continue
		}
		sent++
	}
	return c.Send(fmt.Sprintf("Доставлено %d из %d.", sent, len(users)))
}
