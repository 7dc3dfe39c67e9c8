package bindings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRistrettoCacheImpl_Get(t *testing.T) {
	t.Run("Returns ErrKeyNotFound when the key is missing", func(t *testing.T) {
		cache, err := NewRistrettoCacheImpl()
		require.Nil(t, err)
		_, err = cache.Get(context.Background(), "missing")
		assert.Equal(t, ErrKeyNotFound, err)
	})

	t.Run("Returns the stored value", func(t *testing.T) {
		cache, err := NewRistrettoCacheImpl()
		require.Nil(t, err)
		err = cache.Put(context.Background(), "order-7", `{"status":"shipped"}`, 0)
		require.Nil(t, err)
		cache.Wait()
		value, err := cache.Get(context.Background(), "order-7")
		require.Nil(t, err)
		assert.Equal(t, `{"status":"shipped"}`, value)
	})
}

func TestRistrettoCacheImpl_Put(t *testing.T) {
	t.Run("Overwrites an existing value", func(t *testing.T) {
		cache, err := NewRistrettoCacheImpl()
		require.Nil(t, err)
		ctx := context.Background()
		require.Nil(t, cache.Put(ctx, "key", "first", 0))
		cache.Wait()
		require.Nil(t, cache.Put(ctx, "key", "second", 0))
		cache.Wait()
		value, err := cache.Get(ctx, "key")
		require.Nil(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("Expires values after the ttl", func(t *testing.T) {
		cache, err := NewRistrettoCacheImpl()
		require.Nil(t, err)
		ctx := context.Background()
		require.Nil(t, cache.Put(ctx, "key", "value", 10*time.Millisecond))
		cache.Wait()
		time.Sleep(50 * time.Millisecond)
		_, err = cache.Get(ctx, "key")
		assert.Equal(t, ErrKeyNotFound, err)
	})
}
