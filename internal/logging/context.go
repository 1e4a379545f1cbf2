package logging

import (
	"context"
	"time"
)

// DetachContext creates a context that won't be cancelled when parent is.
// Uses Go 1.21+ context.WithoutCancel for clean implementation.
//
// This is critical for background persistence: the exchange write must
// complete even when the request context is cancelled or times out.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout creates a detached context with its own timeout.
// This ensures background work has its own deadline independent of the
// parent context's cancellation status.
//
// Example usage:
//
//	persistCtx, cancel := logging.DetachContextWithTimeout(ctx, 10*time.Second)
//	defer cancel()
//	_, err := store.AppendExchange(persistCtx, userID, userMsg, reply, meta)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(parent)
	return context.WithTimeout(detached, timeout)
}
