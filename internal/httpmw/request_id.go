package httpmw

import (
	"context"
	"net/http"
	"unicode"

	"github.com/google/uuid"
)

const maxRequestIDLen = 128

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext gets the request ID from context, or "" if none.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID propagates an inbound request ID header when it looks sane,
// otherwise mints a UUIDv4. The ID is stored in the context and echoed on
// the response.
func RequestID(headerName string) Middleware {
	if headerName == "" {
		headerName = "X-Request-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerName)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(headerName, id)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}

// validRequestID rejects IDs that could break log lines or bloat them.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		if c > unicode.MaxASCII || !unicode.IsPrint(c) || c == ' ' {
			return false
		}
	}
	return true
}
