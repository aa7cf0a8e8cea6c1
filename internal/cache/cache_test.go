package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemory()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("value"), time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory()
	c.Set("k", []byte("v"), 10*time.Millisecond)

	_, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewMemory()
	c.Set("k", []byte("v"), 0)

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	c := NewMemory()
	val := []byte("original")
	c.Set("k", val, time.Minute)

	// Mutating the caller's slice must not corrupt the cached copy.
	val[0] = 'X'
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("original"), got)
}

func TestNewSelectsBackend(t *testing.T) {
	_, isMem := New("").(*memory)
	assert.True(t, isMem)

	_, isRedis := New("localhost:6379").(*redisCache)
	assert.True(t, isRedis)
}
