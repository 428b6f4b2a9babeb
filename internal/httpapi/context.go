package httpapi

import "context"

// serverBaseCtx is canceled on process shutdown. Long handlers join it with
// the request context so a shutdown aborts in-flight backend calls.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context. Nil resets it.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req and additionally cancels when base is done.
// Request-scoped values stay reachable. The cancel func must be called.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(context.Cause(base)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
