package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryCache_Validation(t *testing.T) {
	_, err := NewMemoryCache(0, time.Minute)
	assert.Error(t, err)

	_, err = NewMemoryCache(10, 0)
	assert.Error(t, err)
}

func TestMemoryCache_SetGet(t *testing.T) {
	c, err := NewMemoryCache(10, time.Minute)
	require.NoError(t, err)

	c.Set("docs", []string{"a", "b"})
	c.Set("narrative", "text")

	docs, ok := c.GetStrings("docs")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, docs)

	text, ok := c.GetString("narrative")
	require.True(t, ok)
	assert.Equal(t, "text", text)

	_, ok = c.GetString("docs")
	assert.False(t, ok, "type mismatch is a miss")

	c.Delete("docs")
	_, ok = c.Get("docs")
	assert.False(t, ok)

	assert.Equal(t, Stats{Items: 1, MaxSize: 10, TTL: time.Minute}, c.Stats())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewMemoryCache(2, time.Minute)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, err := NewMemoryCache(10, 50*time.Millisecond)
	require.NoError(t, err)

	c.Set("k", "v")
	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)

	c.Set("x", "y")
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
