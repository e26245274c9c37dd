package analyses

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	pollLimitWindow = 1 * time.Second
	pollLimitKeys   = 4096
)

// pollLimiter allows one progress poll per client and analysis per window.
// Keys live in a bounded LRU so abandoned analyses do not accumulate.
type pollLimiter struct {
	mu      sync.Mutex
	lastHit *lru.Cache[string, time.Time]
	now     func() time.Time
	window  time.Duration
}

func newPollLimiter(window time.Duration, now func() time.Time) *pollLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = pollLimitWindow
	}
	cache, _ := lru.New[string, time.Time](pollLimitKeys)
	return &pollLimiter{lastHit: cache, now: now, window: window}
}

// Allow records a poll. When the previous poll is too recent it returns false and the remaining wait.
func (l *pollLimiter) Allow(clientID, analysisID string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key := clientID + "|" + analysisID
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastHit.Get(key); ok {
		if elapsed := now.Sub(last); elapsed < l.window {
			return false, l.window - elapsed
		}
	}
	l.lastHit.Add(key, now)
	return true, 0
}
