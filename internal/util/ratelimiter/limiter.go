package ratelimiter

import (
	"sync"
	"time"
)

// Limiter allows one action per interval and is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	now         func() time.Time
}

// New creates a new rate limiter with the specified interval.
// A zero interval allows every action.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow checks if an action is allowed at this time.
// Returns true if allowed (and records this as the last allowed time),
// or false with the remaining wait duration if rate-limited.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timeSinceLast := now.Sub(l.lastAllowed)

	if l.lastAllowed.IsZero() || timeSinceLast >= l.interval {
		l.lastAllowed = now
		return true, 0
	}

	return false, l.interval - timeSinceLast
}

// Progress forwards a growing byte count to report, at most once per
// interval. The latest count held back by the limiter is sent by Flush.
type Progress struct {
	limiter *Limiter
	report  func(int64)

	mu       sync.Mutex
	latest   int64
	reported int64
}

// NewProgress creates a throttled progress reporter
func NewProgress(interval time.Duration, report func(int64)) *Progress {
	return &Progress{
		limiter:  New(interval),
		report:   report,
		reported: -1,
	}
}

// Update records n and reports it if the interval has elapsed
func (p *Progress) Update(n int64) {
	p.mu.Lock()
	p.latest = n
	p.mu.Unlock()

	if allowed, _ := p.limiter.Allow(); allowed {
		p.send(n)
	}
}

// Flush reports the latest count if it has not been reported yet
func (p *Progress) Flush() {
	p.mu.Lock()
	n := p.latest
	p.mu.Unlock()
	p.send(n)
}

func (p *Progress) send(n int64) {
	p.mu.Lock()
	if n == p.reported {
		p.mu.Unlock()
		return
	}
	p.reported = n
	p.mu.Unlock()

	p.report(n)
}
