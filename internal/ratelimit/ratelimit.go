// Package ratelimit provides per-client token-bucket rate limiting for the
// JSON API. Each client key (API key prefix or remote IP) gets its own
// rate.Limiter; idle entries are evicted so the map doesn't grow without
// bound under churning clients.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	clients map[string]*entry

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time // overridable for tests
}

// New creates a limiter allowing perSecond requests with the given burst
// per client. Entries idle longer than idleTTL are dropped on sweep.
func New(perSecond float64, burst int, idleTTL time.Duration) *Limiter {
	return &Limiter{
		clients: make(map[string]*entry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Allow reports whether the client may proceed, consuming one token.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.clients[client]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = e
	}
	e.lastSeen = l.now()
	return e.limiter.Allow()
}

// Sweep removes entries that have been idle longer than the TTL and returns
// the number evicted. Callers run it periodically from a background loop.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	evicted := 0
	for client, e := range l.clients {
		if e.lastSeen.Before(cutoff) {
			delete(l.clients, client)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
