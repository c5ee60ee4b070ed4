package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
)

// client tracks one address's bucket and last activity.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// logged resets when the entry is evicted and re-created
	logged bool
}

// ClientLimiter is a per-client-IP token bucket with background eviction of
// idle clients. The client map is capped so a spray of source addresses
// cannot grow it without bound.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*client

	perSecond   rate.Limit
	burst       int
	ttl         time.Duration
	maxClients  int
	capReported bool

	onFirstDenied func(ip string)
	onDenied      func(ip string)
	onCapacity    func()
}

type ClientOption func(*ClientLimiter)

// WithRate sets the refill rate and bucket size.
// WithRate(10, 30) allows 30 requests at once, then 10 per second.
func WithRate(perSecond float64, burst int) ClientOption {
	return func(l *ClientLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL controls how long an idle client stays in the map.
func WithTTL(d time.Duration) ClientOption {
	return func(l *ClientLimiter) { l.ttl = d }
}

// WithMaxClients caps tracked clients. New clients beyond the cap are
// denied until eviction frees room. 0 disables the cap.
func WithMaxClients(n int) ClientOption {
	return func(l *ClientLimiter) { l.maxClients = n }
}

// WithOnFirstDenied is called once per tracked client on its first denial.
// Used for logging so a flood produces one line per offender.
func WithOnFirstDenied(fn func(ip string)) ClientOption {
	return func(l *ClientLimiter) { l.onFirstDenied = fn }
}

// WithOnDenied is called on every denial, used for counters.
func WithOnDenied(fn func(ip string)) ClientOption {
	return func(l *ClientLimiter) { l.onDenied = fn }
}

// WithOnCapacity is called the first time the client cap is hit.
func WithOnCapacity(fn func()) ClientOption {
	return func(l *ClientLimiter) { l.onCapacity = fn }
}

// NewClientLimiter starts the eviction loop, which stops when ctx is done.
func NewClientLimiter(ctx context.Context, opts ...ClientOption) *ClientLimiter {
	l := &ClientLimiter{
		clients:    make(map[string]*client),
		perSecond:  10,
		burst:      30,
		ttl:        5 * time.Minute,
		maxClients: 100000,
	}
	for _, o := range opts {
		o(l)
	}
	go l.evictLoop(ctx)
	return l
}

// allow applies the bucket for ip. Hooks run after the lock is released.
func (l *ClientLimiter) allow(ip string) bool {
	var firstDenial, capHit bool

	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		if l.maxClients > 0 && len(l.clients) >= l.maxClients {
			capHit = !l.capReported
			l.capReported = true
			l.mu.Unlock()
			if capHit && l.onCapacity != nil {
				l.onCapacity()
			}
			if l.onDenied != nil {
				l.onDenied(ip)
			}
			return false
		}
		c = &client{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	allowed := c.limiter.Allow()
	if !allowed && !c.logged {
		c.logged = true
		firstDenial = true
	}
	l.mu.Unlock()

	if allowed {
		return true
	}
	if firstDenial && l.onFirstDenied != nil {
		l.onFirstDenied(ip)
	}
	if l.onDenied != nil {
		l.onDenied(ip)
	}
	return false
}

func (l *ClientLimiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *ClientLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > l.ttl {
			delete(l.clients, ip)
		}
	}
	if len(l.clients) < l.maxClients {
		l.capReported = false
	}
}

// retryAfter is the time for one token to refill, rounded up to a second.
func (l *ClientLimiter) retryAfter() string {
	if l.perSecond <= 0 {
		return "60"
	}
	secs := math.Ceil(1 / float64(l.perSecond))
	return strconv.Itoa(int(max(secs, 1)))
}

// Middleware rejects clients over their budget with 429. The client address
// comes from httpmw.ClientIP.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(httpmw.ClientIPFromContext(r.Context())) {
			w.Header().Set("Retry-After", l.retryAfter())
			// no detail about limits or remaining budget
			httpmw.WriteJSON(w, http.StatusTooManyRequests, httpmw.ErrorBody{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
