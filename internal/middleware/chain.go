package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/conneroisu/kbdebug/internal/logging"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares. Middlewares run in the order they were added:
// the first added is the outermost wrapper.
//
// Example with middlewares [A, B, C] and handler H:
//   - Execution: A(B(C(H)))
//   - Request flow: A -> B -> C -> H
type Chain struct {
	middlewares []Middleware
}

// NewChain returns a chain holding mws.
func NewChain(mws ...Middleware) *Chain {
	c := &Chain{middlewares: make([]Middleware, 0, len(mws))}
	for _, mw := range mws {
		c.Use(mw)
	}
	return c
}

// Use appends a middleware.
func (c *Chain) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler with every middleware.
//
// Panics if handler is nil or a middleware is or returns nil; both are
// programming errors caught at startup.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("Chain.Apply: handler cannot be nil")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		mw := c.middlewares[i]
		if mw == nil {
			panic(fmt.Sprintf("Chain.Apply: middleware at index %d is nil", i))
		}
		wrapped = mw(wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("Chain.Apply: middleware at index %d returned nil handler", i))
		}
	}
	return wrapped
}

// RequestLogging logs one line per request with its status and duration.
func RequestLogging(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info(r.Context(), "Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
