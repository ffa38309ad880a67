package chat

import (
	"strings"
	"sync"
)

// AvatarCache remembers the last avatar each username used. Entries are never evicted.
type AvatarCache struct {
	mu      sync.RWMutex
	avatars map[string]string
}

func NewAvatarCache() *AvatarCache {
	return &AvatarCache{avatars: make(map[string]string)}
}

func (c *AvatarCache) Get(username string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	avatar, ok := c.avatars[strings.ToLower(username)]
	return avatar, ok
}

func (c *AvatarCache) Set(username, avatar string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.avatars[strings.ToLower(username)] = avatar
}

// Seed loads stored avatars without overriding entries set since startup.
func (c *AvatarCache) Seed(avatars map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, avatar := range avatars {
		key := strings.ToLower(name)
		if _, ok := c.avatars[key]; !ok {
			c.avatars[key] = avatar
		}
	}
}
