package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// ErrOverloaded is returned by Acquire when every buffer slot is taken.
var ErrOverloaded = errors.New("service overloaded, try again later")

// Admission bounds how many requests may wait for the rate window at once.
// A request holds a buffer slot from arrival until the window admits it.
type Admission struct {
	slots  chan struct{}
	window *FixedWindow

	onShed     func()
	onDepth    func(depth int)
	onAdmit    func(wait time.Duration)
	shedLogged chan struct{}
}

type AdmissionOption func(*Admission)

// WithOnShed is called for every request rejected because the buffer is full.
func WithOnShed(fn func()) AdmissionOption {
	return func(a *Admission) { a.onShed = fn }
}

// WithOnDepth reports the number of occupied buffer slots after each change.
func WithOnDepth(fn func(depth int)) AdmissionOption {
	return func(a *Admission) { a.onDepth = fn }
}

// WithOnAdmit reports how long an admitted request waited for its window.
func WithOnAdmit(fn func(wait time.Duration)) AdmissionOption {
	return func(a *Admission) { a.onAdmit = fn }
}

func NewAdmission(buffer int, window *FixedWindow, opts ...AdmissionOption) *Admission {
	if buffer < 1 {
		buffer = 1
	}
	a := &Admission{
		slots:      make(chan struct{}, buffer),
		window:     window,
		shedLogged: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Capacity is the number of buffer slots.
func (a *Admission) Capacity() int { return cap(a.slots) }

// Acquire claims a buffer slot, waits for the rate window and releases the
// slot once admitted. It fails fast with ErrOverloaded when the buffer is
// full, or with the context's cause if ctx ends while waiting.
func (a *Admission) Acquire(ctx context.Context) error {
	select {
	case a.slots <- struct{}{}:
	default:
		if a.onShed != nil {
			a.onShed()
		}
		return ErrOverloaded
	}
	a.depthChanged()
	defer func() {
		<-a.slots
		a.depthChanged()
	}()

	start := time.Now()
	if err := a.window.Wait(ctx); err != nil {
		return err
	}
	if a.onAdmit != nil {
		a.onAdmit(time.Since(start))
	}
	return nil
}

func (a *Admission) depthChanged() {
	if a.onDepth != nil {
		a.onDepth(len(a.slots))
	}
}

// firstShed is true only for the first shed since the buffer last drained,
// so an overload produces one warning instead of thousands.
func (a *Admission) firstShed() bool {
	select {
	case a.shedLogged <- struct{}{}:
		return true
	default:
		return false
	}
}

// Middleware admits requests through the buffer and window. A shed request
// gets 503 with Retry-After. A request whose context ends while waiting gets
// no response here; the deadline layer above answers it.
func (a *Admission) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := a.Acquire(r.Context())
		switch {
		case err == nil:
			if len(a.slots) == 0 {
				// drained, re-arm the overload warning
				select {
				case <-a.shedLogged:
				default:
				}
			}
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrOverloaded):
			if a.firstShed() {
				log.FromContext(r.Context()).Warn(r.Context(), "admission buffer full, shedding requests",
					"capacity", a.Capacity(),
				)
			}
			w.Header().Set("Retry-After", "1")
			httpmw.WriteJSON(w, http.StatusServiceUnavailable, httpmw.ErrorBody{Error: ErrOverloaded.Error()})
		}
	})
}
