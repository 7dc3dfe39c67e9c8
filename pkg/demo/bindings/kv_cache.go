package bindings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// KVCache is the demo worker's key-value binding: get/put with an optional
// time-to-live. Eviction is left to the cache's LRU/LFU policies.
type KVCache interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RistrettoCacheImpl struct {
	cache *ristretto.Cache
}

func NewRistrettoCacheImpl() (*RistrettoCacheImpl, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 20,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &RistrettoCacheImpl{cache: cache}, nil
}

func (c *RistrettoCacheImpl) Get(ctx context.Context, key string) (string, error) {
	value, found := c.cache.Get(key)
	if !found {
		return "", ErrKeyNotFound
	}
	typedValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value of unexpected type %T returned from cache", value)
	}
	return typedValue, nil
}

func (c *RistrettoCacheImpl) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	var set bool
	if ttl > 0 {
		set = c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	} else {
		set = c.cache.Set(key, value, int64(len(value)))
	}
	if !set {
		return ErrSetFailed
	}
	return nil
}

// Wait blocks until buffered writes are visible to Get. Tests need this;
// request paths should not call it.
func (c *RistrettoCacheImpl) Wait() {
	c.cache.Wait()
}

var (
	ErrKeyNotFound = errors.New("key not found within the cache")
	ErrSetFailed   = errors.New("failed to set value in cache")
)
