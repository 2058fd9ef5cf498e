package models

import "time"

// SubscriptionCode представляет код активации подписки.
// Ключ записи — сам токен. Инвариант: UsedCount никогда не превышает MaxUses.
type SubscriptionCode struct {
	Token        string     // Токен кода, 12 символов в верхнем регистре
	Tier         Tier       // Тариф, который выдаёт код
	DurationDays int        // Длительность подписки в днях
	MaxUses      int        // Максимальное количество активаций
	UsedCount    int        // Текущее количество активаций
	CreatedAt    time.Time  // Момент создания кода
	ExpiresAt    *time.Time // Срок годности самого кода, nil — бессрочный
}

// Exhausted сообщает, исчерпан ли лимит активаций кода.
func (c *SubscriptionCode) Exhausted() bool {
	return c.UsedCount >= c.MaxUses
}

// Expired сообщает, истёк ли срок годности кода к моменту now.
func (c *SubscriptionCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
