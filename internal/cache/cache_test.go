package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freight-dashboard/internal/config"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
)

func setupTestRedis(t *testing.T) (*Results, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, time.Minute), mr
}

func sampleResult() *models.EngineResult {
	return &models.EngineResult{
		Records: []models.Record{
			{Row: 0, Industry: "Retail", Rate: models.SomeFloat(100), InquiryDate: models.SomeDate(2024, time.January, 5)},
			{Row: 1, Industry: "Retail"},
		},
		Summary: models.SummaryMetrics{Count: 2, AverageRate: 100, TopIndustry: "Retail"},
		Charts: []models.ChartDataset{
			{Name: engine.ChartIndustry, Aggregate: "count", Points: []models.ChartPoint{{Label: "Retail", Value: 2, Count: 2}}},
		},
	}
}

func TestKey_Canonical(t *testing.T) {
	a := models.NewFilterSpec().
		With("industry", models.OneOf("Tech", "Retail")).
		With("rate", models.AtLeast(10))
	b := models.NewFilterSpec().
		With("rate", models.AtLeast(10)).
		With("industry", models.OneOf(" Retail", "Tech", "Tech")).
		With("priority", models.OneOf())

	ka, err := Key("fp1", a, engine.Day)
	require.NoError(t, err)
	kb, err := Key("fp1", b, engine.Day)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)

	kc, err := Key("fp2", a, engine.Day)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc, "a new dataset fingerprint changes the key")

	kd, err := Key("fp1", a, engine.Month)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kd)
}

func TestResults_GetSet(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	key, err := Key("fp", nil, engine.Day)
	require.NoError(t, err)

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, store.Set(ctx, key, sampleResult()))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	got, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	assert.Equal(t, Stats{Hits: 1, Misses: 1}, store.Stats())
}

func TestResults_Expiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, keyPrefix+"k", sampleResult()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, keyPrefix+"k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResults_CorruptEntry(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, ok, err := store.Get(context.Background(), keyPrefix+"bad")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), store.Stats().Errors)
}

func TestResults_Flush(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, keyPrefix+"a", sampleResult()))
	require.NoError(t, store.Set(ctx, keyPrefix+"b", sampleResult()))
	require.NoError(t, mr.Set("unrelated", "keep"))

	n, err := store.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("unrelated"))
}

func TestResults_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := New(client, time.Minute)
	mr.Close()

	_, _, err = store.Get(context.Background(), keyPrefix+"x")
	assert.Error(t, err)
	assert.Error(t, store.Ping(context.Background()))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Connect(context.Background(), config.CacheConfig{Addr: mr.Addr(), TTL: time.Second})
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())

	_, err = Connect(context.Background(), config.CacheConfig{Addr: "127.0.0.1:1", TTL: time.Second})
	assert.Error(t, err)
}
