package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payouts"
	"github.com/warp/payout-engine/rewards"
)

var history = []rewards.MonthlyStats{{
	CoachID:     "coach-1",
	MonthKey:    "2024-03",
	Label:       "2024年3月分",
	Month:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	Rate:        decimal.RequireFromString("0.55"),
	TotalSales:  24000,
	TotalReward: 13200,
	LessonCount: 3,
	Details: []rewards.Detail{{
		LessonID:    "l-1",
		Date:        time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC),
		Title:       "通常レッスン",
		StudentName: "Hanako",
		Price:       8000,
		Reward:      4400,
	}},
}}

func TestCodec_RoundTrip(t *testing.T) {
	data, err := encode(history)
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, history[0].Rate.Equal(got[0].Rate))
	assert.Equal(t, history[0].Details, got[0].Details)
	assert.Equal(t, history[0].TotalReward, got[0].TotalReward)
	assert.True(t, history[0].Month.Equal(got[0].Month))

	_, err = decode([]byte("not json"))
	assert.Error(t, err)
}

func TestHistoryCache_KeyIsPrefixed(t *testing.T) {
	c := NewHistoryCache(nil, "payoutd:")
	k := payouts.HistoryKey{CoachID: "coach-1", ReferenceMonth: "2024-04", MonthsBack: 12, PolicyVersion: "v1"}
	assert.Equal(t, "payoutd:"+k.String(), c.key(k))
}

// Runs against a live server when PAYOUT_TEST_REDIS_ADDR is set.
func TestHistoryCache_Live(t *testing.T) {
	addr := os.Getenv("PAYOUT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PAYOUT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewClient(ctx, config.RedisConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cache := NewHistoryCache(client, "payoutd-test:")
	k := payouts.HistoryKey{CoachID: "coach-1", ReferenceMonth: "2024-04", MonthsBack: 12, PolicyVersion: "v1"}
	t.Cleanup(func() { client.Del(ctx, cache.key(k)) })

	_, err = cache.Get(ctx, k)
	assert.ErrorIs(t, err, generic.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, k, history, time.Minute))
	got, err := cache.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, history[0].TotalReward, got[0].TotalReward)

	ttl, err := client.TTL(ctx, cache.key(k)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewClient_RequiresAddr(t *testing.T) {
	_, err := NewClient(context.Background(), config.RedisConfig{})
	assert.Error(t, err)
}
