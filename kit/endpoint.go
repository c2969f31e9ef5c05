// Package kit is the transport-agnostic endpoint plumbing shared by the
// domedit control surfaces: an Endpoint is one editor operation, exposed
// unchanged over HTTP (ctl) and MCP (editor.RegisterMCP).
package kit

import "context"

// Endpoint is one operation: typed request in, typed response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first argument is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
