package login_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonidvolkov/storygram/internal/http/handlers/auth/login"
	"github.com/leonidvolkov/storygram/internal/lib/jwt"
	"github.com/leonidvolkov/storygram/internal/lib/password"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestLoginHandler(t *testing.T) {
	hash, err := password.GetHash("correct-horse")
	require.NoError(t, err)
	maker := jwt.NewMaker("test-secret", time.Hour)
	handler := login.New(newNoopLogger(), maker, "admin", hash)

	tests := []struct {
		name           string
		body           any
		rawBody        string
		wantStatusCode int
		wantToken      bool
	}{
		{
			name:           "success",
			body:           login.Request{Name: "admin", Password: "correct-horse"},
			wantStatusCode: http.StatusOK,
			wantToken:      true,
		},
		{
			name:           "wrong password",
			body:           login.Request{Name: "admin", Password: "wrong-password"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong name",
			body:           login.Request{Name: "intruder", Password: "correct-horse"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "validation failure",
			body:           login.Request{Name: "ad", Password: "short"},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:           "malformed json",
			rawBody:        "{broken",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.rawBody != "" {
				body = []byte(tt.rawBody)
			} else {
				body, err = json.Marshal(tt.body)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			if tt.wantToken {
				var resp struct {
					Status string `json:"status"`
					Data   struct {
						Token string `json:"token"`
						Name  string `json:"name"`
					} `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "OK", resp.Status)
				assert.Equal(t, "admin", resp.Data.Name)

				claims, err := maker.ParseToken(resp.Data.Token)
				require.NoError(t, err)
				assert.Equal(t, "admin", claims.Name)
			}
		})
	}
}
