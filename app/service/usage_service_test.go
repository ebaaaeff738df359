package service

import (
	"path/filepath"
	"testing"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestUsageService(t *testing.T) *UsageService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "usage_test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.UsageRecord{}))

	return NewUsageService(db, logger.NewNop(), config.LimitConfig{
		DailyLimit:      10,
		CooldownMinutes: 10,
	})
}

func TestUsageService_UnlimitedPlatformsAlwaysPass(t *testing.T) {
	s := newTestUsageService(t)
	now := time.Now()

	for _, p := range []model.Platform{model.PlatformYouTube, model.PlatformTwitter, model.PlatformFacebook} {
		decision := s.Check(42, p, now)
		assert.True(t, decision.Allowed, "平台 %s 不应受限", p)
	}

	// 不受限平台不记账
	require.NoError(t, s.Record(42, model.PlatformYouTube, now))
	record, err := s.GetRecord(42)
	require.NoError(t, err)
	assert.Zero(t, record.Count)
}

func TestUsageService_FirstInstagramRequestAllowed(t *testing.T) {
	s := newTestUsageService(t)

	decision := s.Check(42, model.PlatformInstagram, time.Now())

	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Message)
}

func TestUsageService_CooldownAfterSuccess(t *testing.T) {
	s := newTestUsageService(t)
	// 固定在白天，避免跨天触发限额重置
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)

	require.NoError(t, s.Record(42, model.PlatformInstagram, now))

	decision := s.Check(42, model.PlatformInstagram, now.Add(3*time.Minute))
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Wait 7 minutes before next download.", decision.Message)

	// 冷却期过后恢复放行
	decision = s.Check(42, model.PlatformInstagram, now.Add(11*time.Minute))
	assert.True(t, decision.Allowed)
}

func TestUsageService_DailyLimitReached(t *testing.T) {
	s := newTestUsageService(t)
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.Local)

	// 逐次记账直到打满每日限额，每次都先跨过冷却期
	for i := 0; i < 10; i++ {
		ts := now.Add(time.Duration(i) * 15 * time.Minute)
		decision := s.Check(42, model.PlatformInstagram, ts)
		require.True(t, decision.Allowed, "第 %d 次应放行", i+1)
		require.NoError(t, s.Record(42, model.PlatformInstagram, ts))
	}

	decision := s.Check(42, model.PlatformInstagram, now.Add(4*time.Hour))
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Daily limit reached (10 videos). Try again tomorrow.", decision.Message)
}

func TestUsageService_CounterResetsNextDay(t *testing.T) {
	s := newTestUsageService(t)
	now := time.Date(2026, 8, 31, 22, 0, 0, 0, time.Local)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Record(42, model.PlatformInstagram, now))
	}
	require.False(t, s.Check(42, model.PlatformInstagram, now.Add(time.Hour)).Allowed)

	// 次日限额归零
	nextDay := now.Add(24 * time.Hour)
	assert.True(t, s.Check(42, model.PlatformInstagram, nextDay).Allowed)
}

func TestUsageService_RecordsIsolatedPerRequester(t *testing.T) {
	s := newTestUsageService(t)
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)

	require.NoError(t, s.Record(1, model.PlatformInstagram, now))

	// 请求者 1 在冷却期内，请求者 2 不受影响
	assert.False(t, s.Check(1, model.PlatformInstagram, now.Add(time.Minute)).Allowed)
	assert.True(t, s.Check(2, model.PlatformInstagram, now.Add(time.Minute)).Allowed)
}

func TestUsageService_RecordAccumulatesCount(t *testing.T) {
	s := newTestUsageService(t)
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)

	require.NoError(t, s.Record(42, model.PlatformInstagram, now))
	require.NoError(t, s.Record(42, model.PlatformInstagram, now.Add(15*time.Minute)))

	record, err := s.GetRecord(42)
	require.NoError(t, err)
	assert.Equal(t, 2, record.Count)
	assert.Equal(t, now.Add(15*time.Minute).Format(model.DayLayout), record.Day)
}
