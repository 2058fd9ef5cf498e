package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		tier Tier
		want TierPolicy
	}{
		{TierFree, TierPolicy{DailyLimit: 5, Concurrent: 1, Delay: 5 * time.Second}},
		{TierPremium, TierPolicy{DailyLimit: 50, Concurrent: 3, Delay: 2 * time.Second}},
		{TierUltra, TierPolicy{DailyLimit: -1, Concurrent: 10, Delay: time.Second}},
		{Tier("garbage"), TierPolicy{DailyLimit: 5, Concurrent: 1, Delay: 5 * time.Second}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PolicyFor(tt.tier), "tier %q", tt.tier)
	}
}

func TestAllowsDownload(t *testing.T) {
	free := PolicyFor(TierFree)
	assert.True(t, free.AllowsDownload(0))
	assert.True(t, free.AllowsDownload(4))
	assert.False(t, free.AllowsDownload(5))
	assert.False(t, free.AllowsDownload(100))

	ultra := PolicyFor(TierUltra)
	assert.True(t, ultra.AllowsDownload(0))
	assert.True(t, ultra.AllowsDownload(1_000_000))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierPremium, ParseTier("premium"))
	assert.Equal(t, TierUltra, ParseTier("ultra"))
	assert.Equal(t, TierFree, ParseTier("free"))
	assert.Equal(t, TierFree, ParseTier("unknown"))
}

func TestUserFollow(t *testing.T) {
	u := NewUser(1, "alice")
	assert.True(t, u.Follow("durov"))
	assert.False(t, u.Follow("durov"))
	assert.True(t, u.Follows("durov"))
	assert.True(t, u.Unfollow("durov"))
	assert.False(t, u.Unfollow("durov"))
	assert.False(t, u.Follows("durov"))
}

func TestCodeExpiry(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	code := SubscriptionCode{MaxUses: 2, UsedCount: 1}
	assert.False(t, code.Exhausted())
	code.UsedCount = 2
	assert.True(t, code.Exhausted())

	assert.False(t, code.Expired(now), "code without expiry never expires")
	code.ExpiresAt = &past
	assert.True(t, code.Expired(now))
}
