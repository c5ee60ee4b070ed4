package httpmw

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// Deadline runs the rest of the chain in its own goroutine under a context
// that expires after d. Output is buffered and only copied to the client if
// the chain finishes in time. On expiry the buffer is dropped and a
// *TimeoutError is reported, so the client sees exactly one response.
func Deadline(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeoutErr := &TimeoutError{Timeout: d}
			ctx, cancel := context.WithTimeoutCause(r.Context(), d, timeoutErr)
			defer cancel()

			bw := &bufferedWriter{header: make(http.Header)}
			done := make(chan struct{})
			var fault error

			go func() {
				defer close(done)
				defer func() {
					if v := recover(); v != nil {
						fault = xerrors.FromPanic(v)
					}
				}()
				next.ServeHTTP(bw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				if fault != nil {
					ReportError(w, r, fault)
					return
				}
				// finished, but only after the timer fired or the client left
				if ctx.Err() != nil {
					if errors.Is(context.Cause(ctx), timeoutErr) {
						ReportError(w, r, timeoutErr)
					}
					return
				}
				bw.flushTo(w)
			case <-ctx.Done():
				bw.expire()
				if errors.Is(context.Cause(ctx), timeoutErr) {
					ReportError(w, r, timeoutErr)
				}
				// otherwise the client went away and there is no one to answer
			}
		})
	}
}

// bufferedWriter holds a response until Deadline decides whether to send it.
// After expire it rejects all writes.
type bufferedWriter struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	buf     bytes.Buffer
	expired bool
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.expired || b.status != 0 {
		return
	}
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.expired {
		return 0, http.ErrHandlerTimeout
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.buf.Write(p)
}

func (b *bufferedWriter) expire() {
	b.mu.Lock()
	b.expired = true
	b.buf.Reset()
	b.mu.Unlock()
}

// flushTo is only called after the handler goroutine has returned.
func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if b.buf.Len() > 0 {
		_, _ = w.Write(b.buf.Bytes())
	}
}
