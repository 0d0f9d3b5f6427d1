// Package httpmiddleware provides HTTP server middleware: panic recovery,
// request IDs, request logging, OpenTelemetry instrumentation, CORS, and a
// sliding window rate limiter.
package httpmiddleware

import "net/http"

// Middleware is a function that wraps an http.Handler.
type Middleware = func(next http.Handler) http.Handler

// Wrap composes middlewares around h. The first middleware in the list is the
// outermost: Wrap(h, a, b) serves requests as a(b(h)).
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
