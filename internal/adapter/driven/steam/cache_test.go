package steam

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := newResponseCache(2, 1024)
	require.NoError(t, err)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", []byte("3"))

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)
	assert.Equal(t, 2, c.entries.Len())
}

func TestResponseCache_StaysBoundedAcrossManyURLs(t *testing.T) {
	c, err := newResponseCache(8, 1024)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("https://api.example/x?key=K%d&appid=%d", i, i), []byte("body"))
	}

	assert.Equal(t, 8, c.entries.Len())
}

func TestResponseCache_SkipsOversizedResponses(t *testing.T) {
	c, err := newResponseCache(4, 16)
	require.NoError(t, err)

	c.Set("k", []byte("small"))
	c.Set("k", bytes.Repeat([]byte("x"), 17))

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.entries.Len())
}

func TestResponseCache_DoesNotHoldRawURLs(t *testing.T) {
	c, err := newResponseCache(4, 1024)
	require.NoError(t, err)

	url := "https://api.example/ISteamUser/GetPlayerSummaries/v0002/?key=SECRETKEY"
	c.Set(url, []byte("body"))

	for _, k := range c.entries.Keys() {
		assert.False(t, strings.Contains(k, "SECRETKEY"))
	}
	_, ok := c.Get(url)
	assert.True(t, ok)

	c.Delete(url)
	_, ok = c.Get(url)
	assert.False(t, ok)
}
