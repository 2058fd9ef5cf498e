// Package codegen генерирует токены кодов активации подписки.
//
// Токен выводится из sha256-хэша тарифа, длительности и момента создания
// с наносекундным разрешением, усекается до фиксированной длины и
// приводится к верхнему регистру. Токен должен быть практически
// неугадываемым и устойчивым к коллизиям, но криптографическая
// секретность не требуется.
package codegen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// TokenLength — длина токена кода активации.
const TokenLength = 12

// NewToken возвращает новый токен для кода с указанным тарифом и длительностью.
func NewToken(tier string, durationDays int, now time.Time) string {
	seed := fmt.Sprintf("%s%d%d", tier, durationDays, now.UnixNano())
	sum := sha256.Sum256([]byte(seed))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:TokenLength]
}

// Normalize приводит введённый пользователем токен к каноническому виду.
// Коды нечувствительны к регистру.
func Normalize(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}
