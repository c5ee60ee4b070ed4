// Package httpmw provides HTTP middleware for the public-facing server.
//
// Middleware is composed in httpserver.NewHandler, outermost first: panic
// recovery, security headers, request ID, client IP, OTEL tracing, request
// logger, access log, the error boundary, the request deadline, admission
// control, metrics, and the chi router.
//
// The boundary and deadline layers work as a pair. Boundary installs the
// ErrorHandler that turns faults into JSON responses (408 for an expired
// deadline, 500 for anything else). Deadline runs the rest of the chain
// against a buffered writer so an expired request never leaks a partial
// response. Handlers that can fail are written as HandlerFunc and return
// their error instead of writing a 500 themselves.
//
// User-supplied data (query params, user-agent, headers) is intentionally
// excluded from logs to prevent PII leaks and log injection.
package httpmw
