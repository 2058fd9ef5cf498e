package notifier

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leonidvolkov/storygram/internal/models"
)

type SenderMock struct{ mock.Mock }

func (m *SenderMock) SendMessage(userID int64, text string) error {
	return m.Called(userID, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestHandleDowngrade(t *testing.T) {
	notice := models.DowngradeNotice{UserID: 42, Username: "alice", Tier: "premium"}
	body, err := json.Marshal(notice)
	require.NoError(t, err)

	t.Run("delivered", func(t *testing.T) {
		sender := new(SenderMock)
		sender.On("SendMessage", int64(42), mock.MatchedBy(func(text string) bool {
			return len(text) > 0
		})).Return(nil).Once()

		svc := NewService(sender, newNoopLogger())
		require.NoError(t, svc.HandleDowngrade(body))
		sender.AssertExpectations(t)
	})

	t.Run("delivery failure returned for requeue", func(t *testing.T) {
		sender := new(SenderMock)
		sender.On("SendMessage", int64(42), mock.Anything).Return(errors.New("blocked by user"))

		svc := NewService(sender, newNoopLogger())
		assert.Error(t, svc.HandleDowngrade(body))
	})

	t.Run("malformed body", func(t *testing.T) {
		sender := new(SenderMock)
		svc := NewService(sender, newNoopLogger())

		assert.Error(t, svc.HandleDowngrade([]byte("{not json")))
		sender.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})
}
