package model

import "context"

// CallContext carries per-call metadata that the transport forwards to the
// database server. It is immutable after construction.
type CallContext struct {
	// CorrelationID is sent as X-Request-Id. A random one is generated when empty.
	CorrelationID string
	// Database overrides the configured database for this call.
	Database string
}

type contextKey struct{}

// WithCallContext attaches a CallContext to the given context.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, contextKey{}, cc)
}

// CallContextFrom extracts the CallContext from the context, or returns nil
// if not present.
func CallContextFrom(ctx context.Context) *CallContext {
	cc, _ := ctx.Value(contextKey{}).(*CallContext)
	return cc
}
