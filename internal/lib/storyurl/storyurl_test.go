package storyurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantAccount string
		wantID      int
		wantErr     bool
	}{
		{name: "story url", raw: "t.me/durov/s/123", wantAccount: "durov", wantID: 123},
		{name: "short url", raw: "t.me/durov/123", wantAccount: "durov", wantID: 123},
		{name: "https scheme", raw: "https://t.me/some_account/s/7", wantAccount: "some_account", wantID: 7},
		{name: "http scheme", raw: "http://t.me/acc123/42", wantAccount: "acc123", wantID: 42},
		{name: "plain text", raw: "hello", wantErr: true},
		{name: "wrong host", raw: "https://telegram.me/durov/s/1", wantErr: true},
		{name: "missing id", raw: "t.me/durov/s/", wantErr: true},
		{name: "non-numeric id", raw: "t.me/durov/s/abc", wantErr: true},
		{name: "trailing garbage", raw: "t.me/durov/s/5 extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, id, err := Parse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotStoryURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccount, account)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestIsStoryURL(t *testing.T) {
	assert.True(t, IsStoryURL("t.me/durov/s/123"))
	assert.False(t, IsStoryURL("@durov"))
}
