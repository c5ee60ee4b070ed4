package httpmw

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// Recover is the last line of defense for panics raised outside the error
// boundary. It logs the panic, calls onPanic (may be nil) and answers with
// the same 500 body the boundary would.
func Recover(logger log.Logger, onPanic func()) Middleware {
	if logger == nil {
		logger = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := xerrors.FromPanic(v)
				if onPanic != nil {
					onPanic()
				}
				logger.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), err, "httpserver panic recovered")
				WriteError(w, r, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
