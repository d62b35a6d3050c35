// Package middleware provides the HTTP middleware wrapped around the admin router
package middleware

import "net/http"

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain is an ordered middleware stack; the first entry is the outermost
type Chain []Middleware

// NewChain creates a chain from middlewares, skipping nil entries
func NewChain(middlewares ...Middleware) Chain {
	return Chain(nil).Append(middlewares...)
}

// Append returns a new chain with middlewares added after the receiver's
func (c Chain) Append(middlewares ...Middleware) Chain {
	out := make(Chain, 0, len(c)+len(middlewares))
	out = append(out, c...)
	for _, m := range middlewares {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Then wraps handler in the chain
func (c Chain) Then(handler http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		handler = c[i](handler)
	}
	return handler
}
