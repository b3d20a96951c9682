package session

import (
	"context"
	"sync"
)

// MemoryCache is the process-local cache used when no Redis is configured.
// Its contents do not survive a restart.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: map[string]string{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	return value, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *MemoryCache) ClearAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = map[string]string{}
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}

func (c *MemoryCache) Ping(context.Context) error {
	return nil
}
