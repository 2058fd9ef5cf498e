package codegen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewToken(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	token := NewToken("premium", 30, now)
	assert.Len(t, token, TokenLength)
	assert.Equal(t, strings.ToUpper(token), token)

	// Детерминированность: одинаковый вход — одинаковый токен.
	assert.Equal(t, token, NewToken("premium", 30, now))

	// Наносекундный сдвиг даёт другой токен.
	assert.NotEqual(t, token, NewToken("premium", 30, now.Add(time.Nanosecond)))
	assert.NotEqual(t, token, NewToken("ultra", 30, now))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABCD1234WXYZ", Normalize("  abcd1234wxyz "))
	assert.Equal(t, "ABCD1234WXYZ", Normalize("ABCD1234WXYZ"))
}
