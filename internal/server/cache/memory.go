package cache

import (
	"context"
	"time"

	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache keeps encoded timelines in a size-bounded LRU whose entries
// expire a fixed TTL after they were added.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(ctx context.Context, code string) (models.Timeline, bool, error) {
	b, ok := c.lru.Get(key(code))
	if !ok {
		return nil, false, nil
	}

	t, err := decode(b)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, code string, t models.Timeline) error {
	b, err := encode(t)
	if err != nil {
		return err
	}
	c.lru.Add(key(code), b)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, codes ...string) error {
	for _, code := range codes {
		c.lru.Remove(key(code))
	}
	return nil
}
