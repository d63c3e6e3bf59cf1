package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/airwatch/internal/cache"
	"github.com/ObiAU/airwatch/internal/models"
)

func TestCache(t *testing.T) {
	c, err := cache.New(2)
	require.NoError(t, err)
	now := time.Now()

	assert.False(t, c.Add("a", now))
	assert.True(t, c.Add("a", now))
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats["duplicates"])
	assert.Equal(t, 2, stats["capacity"])
}

func TestCacheEviction(t *testing.T) {
	c, err := cache.New(2)
	require.NoError(t, err)
	now := time.Now()

	c.Add("a", now)
	c.Add("b", now)

	// a repeat does not refresh, so "a" is still the oldest
	assert.True(t, c.Add("a", now))

	assert.False(t, c.Add("c", now))
	assert.Equal(t, uint64(1), c.Stats()["evictions"])
	assert.True(t, c.Add("b", now))
	assert.True(t, c.Add("c", now))
	assert.Equal(t, 2, c.Len())

	// "a" was evicted, so it is new again and pushes out "b"
	assert.False(t, c.Add("a", now))
	assert.Equal(t, uint64(2), c.Stats()["evictions"])
}

func TestCacheCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := cache.New(capacity)
		assert.Error(t, err)
	}
}

func TestCacheBounded(t *testing.T) {
	c, err := cache.New(500)
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		c.Add(models.NewFingerprint("src", time.Duration(i).String()), time.Now())
	}
	assert.Equal(t, 500, c.Len())
}
