package quota

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagetalk/app/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Quota.DailyLimit = 3
	cfg.Quota.MinIntervalSeconds = 2

	return cfg
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *fakeClock, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quota.jsonl")

	svc, err := NewWithPath(cfg, path)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = func() time.Time { return clock.now }

	return svc, clock, path
}

func TestConsume_MinInterval(t *testing.T) {
	svc, clock, _ := newTestService(t, testConfig())

	require.NoError(t, svc.Consume("user1"))

	clock.advance(time.Second)
	assert.ErrorIs(t, svc.Consume("user1"), ErrTooSoon)

	clock.advance(1500 * time.Millisecond)
	assert.NoError(t, svc.Consume("user1"))

	// rejected requests do not consume quota
	used, limit := svc.Usage("user1")
	assert.Equal(t, 2, used)
	assert.Equal(t, 3, limit)
}

func TestConsume_DailyLimit(t *testing.T) {
	svc, clock, _ := newTestService(t, testConfig())

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Consume("user1"))
		clock.advance(time.Minute)
	}

	assert.ErrorIs(t, svc.Consume("user1"), ErrQuotaExceeded)

	// a different user has their own budget
	assert.NoError(t, svc.Consume("user2"))
}

func TestConsume_NewDayResets(t *testing.T) {
	svc, clock, _ := newTestService(t, testConfig())

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Consume("user1"))
		clock.advance(time.Minute)
	}
	require.ErrorIs(t, svc.Consume("user1"), ErrQuotaExceeded)

	clock.advance(24 * time.Hour)
	assert.NoError(t, svc.Consume("user1"))

	used, _ := svc.Usage("user1")
	assert.Equal(t, 1, used)
}

func TestCounters_SurviveRestart(t *testing.T) {
	cfg := testConfig()
	svc, clock, path := newTestService(t, cfg)

	require.NoError(t, svc.Consume("user1"))
	clock.advance(time.Minute)
	require.NoError(t, svc.Consume("user1"))

	reloaded, err := NewWithPath(cfg, path)
	require.NoError(t, err)
	reloaded.now = func() time.Time { return clock.now }

	used, _ := reloaded.Usage("user1")
	assert.Equal(t, 2, used)
}

func TestResetDaily(t *testing.T) {
	svc, clock, _ := newTestService(t, testConfig())

	require.NoError(t, svc.Consume("user1"))
	clock.advance(time.Minute)
	require.NoError(t, svc.Consume("user2"))

	// same day: nothing to sweep
	resets, err := svc.ResetDaily()
	require.NoError(t, err)
	assert.Zero(t, resets)

	clock.advance(24 * time.Hour)

	resets, err = svc.ResetDaily()
	require.NoError(t, err)
	assert.Equal(t, 2, resets)

	used, _ := svc.Usage("user1")
	assert.Zero(t, used)
}

func TestStats(t *testing.T) {
	svc, clock, _ := newTestService(t, testConfig())

	require.NoError(t, svc.Consume("user1"))
	clock.advance(time.Minute)
	require.NoError(t, svc.Consume("user1"))
	clock.advance(time.Minute)
	require.NoError(t, svc.Consume("user2"))

	stats := svc.Stats()
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 3, stats.TotalMessagesToday)

	// user2 goes quiet for two days
	clock.advance(48 * time.Hour)
	require.NoError(t, svc.Consume("user1"))

	stats = svc.Stats()
	assert.Equal(t, 1, stats.ActiveUsers)
	assert.Equal(t, 1, stats.TotalMessagesToday)
}
