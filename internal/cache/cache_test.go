package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	c := &memory{m: make(map[string]entry), now: func() time.Time { return now }}

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))

	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "entry should expire after its ttl")
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	v, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestRedis_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "arbix:")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("arbix:quote").SetVal("payload")
		v, ok, err := c.Get(ctx, "quote")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "payload", string(v))
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("arbix:missing").RedisNil()
		v, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet("arbix:broken").SetErr(redis.TxFailedErr)
		_, _, err := c.Get(ctx, "broken")
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "arbix:")
	ctx := context.Background()

	mock.ExpectSet("arbix:quote", []byte("payload"), 5*time.Second).SetVal("OK")
	require.NoError(t, c.Set(ctx, "quote", []byte("payload"), 5*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_DefaultsToMemory(t *testing.T) {
	c, err := New(context.Background(), Options{})
	require.NoError(t, err)
	_, isMemory := c.(*memory)
	assert.True(t, isMemory)
}
