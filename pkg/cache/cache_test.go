package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := NewTTLCache(10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("report", []byte(`{"total":3}`))
	got, ok := c.Get("report")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"total":3}`), got)
}

func TestExpiry(t *testing.T) {
	c := NewTTLCache(10, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("report", []byte("x"))

	now = now.Add(30 * time.Second)
	_, ok := c.Get("report")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("report")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := NewTTLCache(2, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", []byte("1"))
	now = now.Add(time.Second)
	c.Set("b", []byte("2"))
	now = now.Add(time.Second)
	c.Set("c", []byte("3"))

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := NewTTLCache(2, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("a", []byte("updated"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), got)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c := NewTTLCache(10, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	c.InvalidateAll()
	assert.Zero(t, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("APPTRAIL_CACHE_ENABLED", "true")
	t.Setenv("APPTRAIL_CACHE_TTL_SECONDS", "5")
	t.Setenv("APPTRAIL_CACHE_MAX_SIZE", "42")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5*time.Second, cfg.TTL)
	assert.Equal(t, 42, cfg.MaxSize)
}

func TestFromConfigDisabled(t *testing.T) {
	assert.Nil(t, FromConfig(&Config{Enabled: false}))
	assert.Nil(t, FromConfig(nil))
	assert.NotNil(t, FromConfig(DefaultConfig()))
}
