package models

import "time"

// SessionRecord хранит учётные данные пользовательской MTProto-сессии,
// чтобы пул мог восстановить ротацию после перезапуска.
// Ключ записи — имя сессии, присвоенное администратором.
type SessionRecord struct {
	Name          string    // Уникальное имя сессии
	StringSession string    // Строковая сессия в формате Telethon
	AddedAt       time.Time // Момент регистрации
}

// DowngradeNotice — сообщение о понижении тарифа, публикуемое
// ежедневной чисткой в очередь уведомлений.
type DowngradeNotice struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Tier     string `json:"tier"` // Тариф, действовавший до понижения
}
