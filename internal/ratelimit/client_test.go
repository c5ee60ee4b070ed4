package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
)

// newTestClientLimiter uses a short TTL and stops eviction on test cleanup.
func newTestClientLimiter(t *testing.T, opts ...ClientOption) *ClientLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	all := append([]ClientOption{WithRate(10, 5), WithTTL(100 * time.Millisecond)}, opts...)
	return NewClientLimiter(ctx, all...)
}

func TestClientLimiter_Defaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewClientLimiter(ctx)
	if l.perSecond != 10 || l.burst != 30 {
		t.Errorf("rate = %v/%d, want 10/30", l.perSecond, l.burst)
	}
	if l.ttl != 5*time.Minute {
		t.Errorf("ttl = %v, want 5m", l.ttl)
	}
	if l.maxClients != 100000 {
		t.Errorf("maxClients = %d, want 100000", l.maxClients)
	}
}

func TestClientLimiter_BurstThenReject(t *testing.T) {
	l := newTestClientLimiter(t, WithRate(1, 5))

	for i := 0; i < 5; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed (within burst)", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("request 6 should be denied")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("other clients have their own bucket")
	}
}

func TestClientLimiter_Refill(t *testing.T) {
	l := newTestClientLimiter(t, WithRate(100, 1))

	l.allow("10.0.0.1")
	if l.allow("10.0.0.1") {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.allow("10.0.0.1") {
		t.Fatal("bucket should have refilled")
	}
}

func TestClientLimiter_Hooks(t *testing.T) {
	var first, denied atomic.Int32
	l := newTestClientLimiter(t,
		WithRate(1, 1),
		WithOnFirstDenied(func(string) { first.Add(1) }),
		WithOnDenied(func(string) { denied.Add(1) }),
	)

	for i := 0; i < 4; i++ {
		l.allow("10.0.0.1")
	}
	l.allow("10.0.0.2")
	l.allow("10.0.0.2")

	if first.Load() != 2 {
		t.Fatalf("first-denied calls = %d, want 2 (one per client)", first.Load())
	}
	if denied.Load() != 4 {
		t.Fatalf("denied calls = %d, want 4", denied.Load())
	}
}

func TestClientLimiter_EvictionResetsState(t *testing.T) {
	var first atomic.Int32
	l := newTestClientLimiter(t,
		WithRate(0.001, 1),
		WithTTL(40*time.Millisecond),
		WithOnFirstDenied(func(string) { first.Add(1) }),
	)

	l.allow("10.0.0.1")
	l.allow("10.0.0.1")
	time.Sleep(120 * time.Millisecond)

	l.mu.Lock()
	n := len(l.clients)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("clients after ttl = %d, want 0", n)
	}

	if !l.allow("10.0.0.1") {
		t.Fatal("evicted client should start with a fresh bucket")
	}
	l.allow("10.0.0.1")
	if first.Load() != 2 {
		t.Fatalf("first-denied calls = %d, want 2 after eviction", first.Load())
	}
}

func TestClientLimiter_EvictKeepsActive(t *testing.T) {
	l := newTestClientLimiter(t, WithTTL(time.Hour))
	l.allow("10.0.0.1")

	l.evict(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.clients["10.0.0.1"]; !ok {
		t.Fatal("active client evicted")
	}
}

func TestClientLimiter_MaxClients(t *testing.T) {
	var capCalls atomic.Int32
	l := newTestClientLimiter(t,
		WithRate(100, 100),
		WithMaxClients(2),
		WithOnCapacity(func() { capCalls.Add(1) }),
	)

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")

	if l.allow("10.0.0.3") {
		t.Fatal("new client should be rejected at capacity")
	}
	l.allow("10.0.0.4")
	if capCalls.Load() != 1 {
		t.Fatalf("onCapacity calls = %d, want 1", capCalls.Load())
	}
	if !l.allow("10.0.0.1") {
		t.Fatal("known client should still be served at capacity")
	}
}

func TestClientLimiter_MaxClientsZeroDisablesCap(t *testing.T) {
	l := newTestClientLimiter(t, WithRate(100, 100), WithMaxClients(0))
	for i := 0; i < 300; i++ {
		if ip := fmt.Sprintf("10.0.%d.%d", i/256, i%256); !l.allow(ip) {
			t.Fatalf("client %s rejected with cap disabled", ip)
		}
	}
}

func TestClientLimiter_ConcurrentAccess(t *testing.T) {
	l := newTestClientLimiter(t, WithRate(100, 100), WithMaxClients(50))

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if l.allow(fmt.Sprintf("10.%d.%d.%d", n/65536, (n/256)%256, n%256)) {
				allowed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if allowed.Load() != 50 {
		t.Fatalf("allowed = %d, want 50", allowed.Load())
	}
}

func makeRequestWithIP(h http.Handler, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r = r.WithContext(httpmw.WithClientIP(r.Context(), ip))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestClientLimiter_Middleware429(t *testing.T) {
	l := newTestClientLimiter(t, WithRate(1, 2))

	var reached atomic.Int32
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached.Add(1)
	}))

	for i := 0; i < 2; i++ {
		if rec := makeRequestWithIP(h, "203.0.113.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, rec.Code)
		}
	}

	rec := makeRequestWithIP(h, "203.0.113.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3: got %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if want := `{"error":"too many requests"}`; rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if reached.Load() != 2 {
		t.Fatalf("handler reached %d times, want 2", reached.Load())
	}

	if rec := makeRequestWithIP(h, "203.0.113.2"); rec.Code != http.StatusOK {
		t.Fatalf("other client: got %d, want 200", rec.Code)
	}
}

func TestClientLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{10, "1"},
		{1, "1"},
		{0.5, "2"},
		{0.1, "10"},
	}
	for _, tt := range tests {
		l := newTestClientLimiter(t, WithRate(tt.rate, 1))
		if got := l.retryAfter(); got != tt.want {
			t.Errorf("rate %v: retryAfter = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
