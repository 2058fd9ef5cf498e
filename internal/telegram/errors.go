// Package telegram оборачивает RPC-клиент gotd для работы с историями:
// резолв аккаунтов, листинг, выборка по номеру и скачивание медиа.
// Вся протокольная часть MTProto остаётся внутри gotd.
package telegram

import (
	"errors"
	"fmt"
	"time"
)

// ErrStoryNotFound возвращается, когда история с указанным номером
// отсутствует у аккаунта.
var ErrStoryNotFound = errors.New("story not found")

// ErrAccountNotFound возвращается, когда имя аккаунта не резолвится.
var ErrAccountNotFound = errors.New("account not found")

// RateLimited сигнализирует FLOOD_WAIT от бэкенда: повторять запрос
// можно не раньше, чем через RetryAfter.
type RateLimited struct {
	RetryAfter time.Duration
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimited извлекает RateLimited из цепочки ошибок.
func AsRateLimited(err error) (*RateLimited, bool) {
	var rl *RateLimited
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
