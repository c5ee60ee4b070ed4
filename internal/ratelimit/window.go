package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow admits at most limit requests per window. Windows are aligned
// to the first admission, and the counter resets at each boundary.
type FixedWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	start  time.Time
	count  int

	now func() time.Time
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &FixedWindow{limit: limit, window: window, now: time.Now}
}

// reserve takes a slot in the current window if one is free. Otherwise it
// returns how long until the next window opens.
func (f *FixedWindow) reserve() (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if f.start.IsZero() {
		f.start = now
	} else if elapsed := now.Sub(f.start); elapsed >= f.window {
		f.start = f.start.Add(elapsed - elapsed%f.window)
		f.count = 0
	}

	if f.count < f.limit {
		f.count++
		return true, 0
	}
	return false, f.start.Add(f.window).Sub(now)
}

// Allow reports whether a request may proceed in the current window.
func (f *FixedWindow) Allow() bool {
	ok, _ := f.reserve()
	return ok
}

// Wait blocks until a slot is granted or ctx is done.
func (f *FixedWindow) Wait(ctx context.Context) error {
	for {
		ok, wait := f.reserve()
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return context.Cause(ctx)
		case <-t.C:
		}
	}
}
