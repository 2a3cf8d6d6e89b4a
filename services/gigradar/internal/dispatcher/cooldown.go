package dispatcher

import (
	"sync"
	"time"
)

const DefaultCooldown = 30 * time.Second

// Cooldown enforces a minimum gap between accepted requests per user.
// time.Now carries a monotonic reading, so wall clock jumps do not matter.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow records an accepted request for user and reports true, or reports
// false with the remaining wait when the user is still cooling down.
func (c *Cooldown) Allow(user string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if prev, ok := c.last[user]; ok {
		if elapsed := now.Sub(prev); elapsed < c.window {
			return false, c.window - elapsed
		}
	}
	c.last[user] = now
	c.prune(now)
	return true, 0
}

func (c *Cooldown) prune(now time.Time) {
	if len(c.last) < 1024 {
		return
	}
	for user, at := range c.last {
		if now.Sub(at) >= c.window {
			delete(c.last, user)
		}
	}
}
