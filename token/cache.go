package token

import (
	"sync"
	"time"
)

// Entry is the single cached bearer token and its computed expiry.
type Entry struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthorizationHeader returns the value for the Authorization header.
func (e Entry) AuthorizationHeader() string {
	return "Bearer " + e.AccessToken
}

// Cache holds one token pair. It is overwritten on every acquisition and
// considered usable until skew before its expiry. Tokens living shorter than
// twice the skew are refreshed at half their lifetime instead.
type Cache struct {
	mu      sync.RWMutex
	entry   Entry
	present bool
	skew    time.Duration
	// entrySkew is skew capped at half the entry's lifetime when it was put.
	entrySkew time.Duration
	nowFunc   func() time.Time
}

func NewCache(skew time.Duration, nowFunc func() time.Time) *Cache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Cache{
		skew:    skew,
		nowFunc: nowFunc,
	}
}

// Get returns the cached entry only while it is still valid.
func (c *Cache) Get() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.present || !c.validLocked() {
		return Entry{}, false
	}
	return c.entry, true
}

// Peek returns the cached entry regardless of expiry.
func (c *Cache) Peek() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry, c.present
}

func (c *Cache) Put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = e
	c.present = true
	c.entrySkew = c.skew
	if half := e.ExpiresAt.Sub(c.nowFunc()) / 2; half < c.entrySkew {
		c.entrySkew = max(half, 0)
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = Entry{}
	c.present = false
	c.entrySkew = 0
}

// Remaining is the time left before the entry must be refreshed.
func (c *Cache) Remaining() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.present {
		return 0
	}
	remaining := c.entry.ExpiresAt.Add(-c.entrySkew).Sub(c.nowFunc())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Cache) validLocked() bool {
	if c.entry.AccessToken == "" {
		return false
	}
	return c.nowFunc().Before(c.entry.ExpiresAt.Add(-c.entrySkew))
}
