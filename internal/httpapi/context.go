package httpapi

import "context"

// serverBaseCtx is canceled on daemon shutdown so in-flight evaluations and
// fetches stop instead of outliving the listener. Defaults to Background.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context canceled when either parent is done. The
// eval and fetch handlers join the request context with the base one so both
// client disconnects and shutdown cancel the work. The returned cancel func
// must be called when the handler ends to release the goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
