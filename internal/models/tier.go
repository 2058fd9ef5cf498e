// Package models содержит доменные структуры бота: пользователей,
// коды активации, записи сессий и политики тарифов.
package models

import "time"

// Tier представляет тариф подписки пользователя.
type Tier string

// Возможные тарифы. Free действует всегда, когда нет активной оплаченной подписки.
const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierUltra   Tier = "ultra"
)

// ParseTier возвращает тариф по строковому значению.
// Неизвестное значение трактуется как Free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPremium:
		return TierPremium
	case TierUltra:
		return TierUltra
	default:
		return TierFree
	}
}

// TierPolicy описывает лимиты тарифа: дневную квоту, количество
// одновременных загрузок и паузу между загрузками.
// DailyLimit < 0 означает отсутствие дневного лимита.
type TierPolicy struct {
	DailyLimit int
	Concurrent int
	Delay      time.Duration
}

// PolicyFor возвращает политику тарифа. Таблица фиксирована на этапе
// компиляции: добавление нового тарифа требует нового case.
func PolicyFor(tier Tier) TierPolicy {
	switch tier {
	case TierPremium:
		return TierPolicy{DailyLimit: 50, Concurrent: 3, Delay: 2 * time.Second}
	case TierUltra:
		return TierPolicy{DailyLimit: -1, Concurrent: 10, Delay: time.Second}
	default:
		return TierPolicy{DailyLimit: 5, Concurrent: 1, Delay: 5 * time.Second}
	}
}

// AllowsDownload сообщает, разрешает ли политика ещё одну загрузку
// при текущем дневном счётчике.
func (p TierPolicy) AllowsDownload(dailyCount int) bool {
	return p.DailyLimit < 0 || dailyCount < p.DailyLimit
}
