package httpmw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// ErrorHandler renders a fault that escaped the handler chain. It must write
// a complete response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type errorHandlerKey struct{}

// TimeoutError reports a request that outlived its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request took longer than the configured %d second timeout", int64(e.Timeout/time.Second))
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Classify maps a fault to its status code and client-facing message.
func Classify(err error) (int, string) {
	var te *TimeoutError
	if errors.As(err, &te) {
		return http.StatusRequestTimeout, te.Error()
	}
	return http.StatusInternalServerError, "unhandled internal error: " + err.Error()
}

// WriteError is the default ErrorHandler: it writes the classified fault as
// {"error": "..."} and nothing else.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status, msg := Classify(err)
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// Boundary installs h as the request's ErrorHandler and converts panics that
// reach it into faults. Layers below report faults with ReportError.
func Boundary(h ErrorHandler) Middleware {
	if h == nil {
		h = WriteError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(context.WithValue(r.Context(), errorHandlerKey{}, h))
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					h(w, r, xerrors.FromPanic(v))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ReportError hands err to the ErrorHandler installed by Boundary, or to
// WriteError when there is none.
func ReportError(w http.ResponseWriter, r *http.Request, err error) {
	errorHandlerFrom(r.Context())(w, r, err)
}

func errorHandlerFrom(ctx context.Context) ErrorHandler {
	if h, ok := ctx.Value(errorHandlerKey{}).(ErrorHandler); ok && h != nil {
		return h
	}
	return WriteError
}

// HandlerFunc is a handler that can fail. A returned error is reported
// through ReportError, so the handler must not have written anything yet.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		ReportError(w, r, err)
	}
}
