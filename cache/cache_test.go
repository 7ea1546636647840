package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/profilescan/models"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestCache_GetRespectsMaxAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newCache(10)
	c.now = fixedClock(&now)

	key := Key("https://www.linkedin.com/in/alice", "Alice Smith", "gpt-5")
	c.Set(key, &models.Report{RiskLevel: models.RiskLow, Model: "gpt-5"})

	_, hit := c.Get(key, 0)
	assert.False(t, hit, "max age 0 bypasses the cache")

	now = now.Add(30 * time.Second)
	r, hit := c.Get(key, 60_000)
	require.True(t, hit)
	assert.Equal(t, models.RiskLow, r.RiskLevel)

	now = now.Add(time.Minute)
	_, hit = c.Get(key, 60_000)
	assert.False(t, hit)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := newCache(10)
	c.Set("k", &models.Report{RiskLevel: models.RiskHigh})

	r, _ := c.Get("k", 1000)
	r.RiskLevel = models.RiskLow

	again, _ := c.Get("k", 1000)
	assert.Equal(t, models.RiskHigh, again.RiskLevel)
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := newCache(2)
	c.Set("a", &models.Report{})
	c.Set("b", &models.Report{})
	c.Set("b", &models.Report{})
	assert.Equal(t, 2, c.Len(), "overwriting does not evict")

	c.Set("c", &models.Report{})
	assert.Equal(t, 2, c.Len())
	_, hit := c.Get("c", 1000)
	assert.True(t, hit)
}

func TestCache_EvictExpired(t *testing.T) {
	now := time.Now()
	c := newCache(10)
	c.now = fixedClock(&now)
	c.Set("old", &models.Report{})

	now = now.Add(2 * time.Hour)
	c.Set("new", &models.Report{})
	c.evictExpired()

	assert.Equal(t, 1, c.Len())
}

func TestKey(t *testing.T) {
	const url = "https://www.linkedin.com/in/alice"
	base := Key(url, "Alice Smith", "gpt-5")

	assert.Equal(t, base, Key(url, "Alice Smith", "gpt-5"))
	assert.NotEqual(t, base, Key(url, "Alice Smith", "gpt-4o"))
	assert.NotEqual(t, base, Key("https://www.linkedin.com/in/bob", "Alice Smith", "gpt-5"))
	assert.NotEqual(t, base, Key(url, "Alice Smith.", "gpt-5"))
	assert.NotEqual(t, Key("a", "bc", "m"), Key("ab", "c", "m"))
}
