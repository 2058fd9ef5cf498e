package models

import "time"

// Settings хранит пользовательские настройки бота.
type Settings struct {
	SilentMode bool   `json:"silent_mode"` // Отправлять файлы без уведомления
	Quality    string `json:"quality"`     // Предпочитаемое качество, по умолчанию "best"
}

// DefaultSettings возвращает настройки нового пользователя.
func DefaultSettings() Settings {
	return Settings{SilentMode: false, Quality: "best"}
}

// User представляет пользователя бота. Ключ записи — телеграмный ID.
// SubscriptionEnds может быть nil — это означает отсутствие активной
// оплаченной подписки; в этом случае тариф всегда Free.
type User struct {
	ID               int64      // Телеграмный идентификатор пользователя
	Username         string     // Отображаемое имя
	Tier             Tier       // Текущий тариф
	SubscriptionEnds *time.Time // Дата окончания подписки, nil — подписки нет
	DailyDownloads   int        // Загрузок за текущий день
	TotalDownloads   int        // Загрузок за всё время
	LastReset        time.Time  // Момент последнего сброса дневного счётчика
	FollowedAccounts []string   // Отслеживаемые аккаунты, без дубликатов
	Settings         Settings
}

// NewUser создаёт запись пользователя с тарифом Free.
func NewUser(id int64, username string) *User {
	return &User{
		ID:        id,
		Username:  username,
		Tier:      TierFree,
		LastReset: time.Now(),
		Settings:  DefaultSettings(),
	}
}

// Follows сообщает, отслеживает ли пользователь аккаунт.
func (u *User) Follows(account string) bool {
	for _, a := range u.FollowedAccounts {
		if a == account {
			return true
		}
	}
	return false
}

// Follow добавляет аккаунт в список отслеживаемых, если его там ещё нет.
// Возвращает true, если список изменился.
func (u *User) Follow(account string) bool {
	if u.Follows(account) {
		return false
	}
	u.FollowedAccounts = append(u.FollowedAccounts, account)
	return true
}

// Unfollow убирает аккаунт из списка отслеживаемых.
// Возвращает true, если список изменился.
func (u *User) Unfollow(account string) bool {
	for i, a := range u.FollowedAccounts {
		if a == account {
			u.FollowedAccounts = append(u.FollowedAccounts[:i], u.FollowedAccounts[i+1:]...)
			return true
		}
	}
	return false
}
