package httpmw

import "net/http"

// Security note: CSRF protection is not applicable. The API is stateless
// (no cookies, no sessions) and only ever returns JSON.

// SecurityHeaders sets the response headers appropriate for a JSON API that
// is never meant to be rendered or framed by a browser.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// nothing here should load or execute anything
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")

		next.ServeHTTP(w, r)
	})
}
