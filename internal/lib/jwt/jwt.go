// Package jwt реализует выпуск и проверку JWT-токенов администраторской
// панели. Токен несёт имя администратора; срок жизни задаётся в конфиге.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims описывает данные, хранящиеся в токене администратора.
type AdminClaims struct {
	Name                 string `json:"name"` // Имя администратора
	jwt.RegisteredClaims        // Стандартные claims (ExpiresAt, IssuedAt и пр.)
}

// Maker выпускает и разбирает токены администратора.
type Maker struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewMaker создаёт Maker с секретным ключом и временем жизни токена.
func NewMaker(secretKey string, ttl time.Duration) *Maker {
	return &Maker{secretKey: secretKey, tokenTTL: ttl}
}

// GenerateToken создаёт подписанный токен для администратора name.
func (m *Maker) GenerateToken(name string) (string, error) {
	claims := AdminClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// ParseToken проверяет подпись и срок действия токена
// и возвращает claims, если токен корректен.
func (m *Maker) ParseToken(tokenStr string) (*AdminClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &AdminClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
