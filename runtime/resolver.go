package runtime

import (
	"context"
	"fmt"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"time"
)

var _ contract.NameResolver = (*Resolver)(nil)

// Resolver asks a peer for its display name through the transport.
// It keeps no state: every call issues exactly one getName invocation.
type Resolver struct {
	invoker contract.Invoker
	timeout time.Duration
}

// NewResolver builds a resolver. A zero timeout leaves the bound to the transport.
func NewResolver(invoker contract.Invoker, timeout time.Duration) *Resolver {
	return &Resolver{invoker: invoker, timeout: timeout}
}

func (r *Resolver) Resolve(ctx context.Context, handle domain.RemoteHandle) <-chan domain.Result {
	out := make(chan domain.Result, 1)
	go func() {
		defer close(out)
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		defer cancel()

		select {
		case res, ok := <-r.invoker.InvokeAsync(callCtx, handle, contract.MethodGetName):
			switch {
			case !ok:
				out <- domain.Result{Err: fmt.Errorf("%w: %s: no result", errors.ErrResolutionFailed, handle)}
			case res.Err != nil:
				out <- domain.Result{Err: fmt.Errorf("%w: %s: %w", errors.ErrResolutionFailed, handle, res.Err)}
			default:
				out <- res
			}
		case <-callCtx.Done():
			out <- domain.Result{Err: fmt.Errorf("%w: %s: %w", errors.ErrResolutionFailed, handle, callCtx.Err())}
		}
	}()
	return out
}
