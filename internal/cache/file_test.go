package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	key := Key([]byte("https://api.example.com/chat"), []byte(`{"model":"x"}`))
	require.NoError(t, c.Set(key, &Entry{Body: []byte(`{"ok":true}`), StatusCode: 200}))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, `{"ok":true}`, string(got.Body))
	assert.Equal(t, 200, got.StatusCode)
}

func TestExpiredEntryIsRemoved(t *testing.T) {
	c, err := New(t.TempDir(), time.Minute)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	key := Key([]byte("k"))
	require.NoError(t, c.Set(key, &Entry{Body: []byte("x"), StatusCode: 200}))

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok := c.Get(key)
	assert.False(t, ok)

	_, err = os.Stat(c.path(key))
	assert.True(t, os.IsNotExist(err))
}

func TestCorruptEntryIsRemoved(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	key := Key([]byte("corrupt"))
	require.NoError(t, c.Set(key, &Entry{Body: []byte("x")}))
	require.NoError(t, os.WriteFile(c.path(key), []byte("{not json"), 0o644))

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestKeyDistinguishesParts(t *testing.T) {
	assert.NotEqual(t, Key([]byte("ab"), []byte("c")), Key([]byte("a"), []byte("bc")))
	assert.Equal(t, Key([]byte("a")), Key([]byte("a")))
}
