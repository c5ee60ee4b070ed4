package httpmw

import (
	"net/http"
)

// Middleware wraps a handler with one pipeline layer.
type Middleware = func(http.Handler) http.Handler

// Chain applies middlewares so that the first middleware in the
// list is the outermost, and the last is innermost, wrapping h.
// nil entries are skipped so optional layers can be left in place.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
