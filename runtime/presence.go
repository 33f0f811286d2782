package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
)

var (
	_ contract.Presence = (*Presence)(nil)
	_ contract.Worker   = (*Presence)(nil)
)

type inputKind int

const (
	inputDiscovered inputKind = iota
	inputDisconnected
	inputReconnected
	inputOffline
	inputResolved
)

type presenceInput struct {
	kind   inputKind
	handle domain.RemoteHandle
	token  uint64
	result domain.Result
}

// Presence reconciles lifecycle events with name resolutions.
//
// Every input, including resolution completions, goes through one queue
// consumed by Run, so the registry and the bookkeeping below have a single writer.
// A completion is applied only if its handle is still registered and its token
// is still the one in flight: a disconnection observed before the name arrives
// never turns into a "joined" notification.
type Presence struct {
	log      *slog.Logger
	registry contract.IRegistry
	resolver contract.NameResolver
	sink     contract.SessionEventSink
	stats    *observability.SessionStats
	strict   bool
	inputs   chan presenceInput

	// Owned by the loop.
	names     map[domain.RemoteHandle]string
	pending   map[domain.RemoteHandle]uint64
	nextToken uint64
}

// NewPresence builds the state machine. With strict set, an invariant
// violation panics instead of being logged and ignored.
func NewPresence(log *slog.Logger, registry contract.IRegistry, resolver contract.NameResolver,
	sink contract.SessionEventSink, stats *observability.SessionStats, bufferSize int, strict bool) *Presence {
	return &Presence{
		log:      log,
		registry: registry,
		resolver: resolver,
		sink:     sink,
		stats:    stats,
		strict:   strict,
		inputs:   make(chan presenceInput, bufferSize),
		names:    make(map[domain.RemoteHandle]string),
		pending:  make(map[domain.RemoteHandle]uint64),
	}
}

func (p *Presence) Discovered(ctx context.Context, handle domain.RemoteHandle) error {
	return p.submit(ctx, presenceInput{kind: inputDiscovered, handle: handle})
}

func (p *Presence) Disconnected(ctx context.Context, handle domain.RemoteHandle) error {
	return p.submit(ctx, presenceInput{kind: inputDisconnected, handle: handle})
}

func (p *Presence) Reconnected(ctx context.Context, handle domain.RemoteHandle) error {
	return p.submit(ctx, presenceInput{kind: inputReconnected, handle: handle})
}

func (p *Presence) LocalWentOffline(ctx context.Context) error {
	return p.submit(ctx, presenceInput{kind: inputOffline})
}

// submit queues in while ctx is alive. A free slot always wins over a
// cancellation noticed at the same time.
func (p *Presence) submit(ctx context.Context, in presenceInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inputs <- in:
		return nil
	default:
	}
	select {
	case p.inputs <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the single mutation point of the registry.
func (p *Presence) Run(ctx context.Context) error {
	for {
		if err := p.step(ctx); err != nil {
			p.log.Debug("Stopping presence loop")
			return nil
		}
	}
}

func (p *Presence) step(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case in := <-p.inputs:
		p.apply(ctx, in)
		return nil
	}
}

func (p *Presence) apply(ctx context.Context, in presenceInput) {
	switch in.kind {
	case inputDiscovered:
		p.onDiscovered(ctx, in.handle)
	case inputDisconnected:
		p.onDisconnected(in.handle)
	case inputReconnected:
		p.onReconnected(ctx, in.handle)
	case inputOffline:
		p.onOffline()
	case inputResolved:
		p.onResolved(in.handle, in.token, in.result)
	}
}

func (p *Presence) onDiscovered(ctx context.Context, handle domain.RemoteHandle) {
	if !p.registry.Add(domain.NewResolvingEntry(handle)) {
		p.log.Debug("Handle already tracked", "handle", handle)
		return
	}
	if _, inFlight := p.pending[handle]; inFlight {
		// One resolution per handle: the outstanding one will complete this entry.
		p.log.Debug("Reusing in-flight resolution", "handle", handle)
		return
	}
	p.nextToken++
	token := p.nextToken
	p.pending[handle] = token

	results := p.resolver.Resolve(ctx, handle)
	go func() {
		res, ok := <-results
		if !ok {
			res = domain.Result{Err: fmt.Errorf("%w: %s: no result", errors.ErrResolutionFailed, handle)}
		}
		_ = p.submit(ctx, presenceInput{kind: inputResolved, handle: handle, token: token, result: res})
	}()
}

func (p *Presence) onDisconnected(handle domain.RemoteHandle) {
	entry, ok := p.registry.Remove(handle)
	if !ok {
		p.log.Debug("Disconnection of an untracked handle", "handle", handle)
		return
	}
	name, resolved := entry.Name()
	if !resolved {
		// Never visible: the pending resolution will find the handle gone.
		return
	}
	p.stats.IncrPeersLeft()
	p.sink.PeerLeft(name)
}

func (p *Presence) onReconnected(ctx context.Context, handle domain.RemoteHandle) {
	name, known := p.names[handle]
	if !known {
		p.onDiscovered(ctx, handle)
		return
	}
	if !p.registry.Add(domain.NewActiveEntry(handle, name)) {
		p.log.Debug("Handle already tracked", "handle", handle)
		return
	}
	delete(p.pending, handle)
	p.stats.IncrPeersJoined()
	p.sink.PeerJoined(name)
}

func (p *Presence) onOffline() {
	evicted := p.registry.Clear()
	// Outstanding results now belong to evicted handles.
	p.pending = make(map[domain.RemoteHandle]uint64)
	p.stats.IncrOfflineTransitions()
	p.log.Info("Local peer offline, conversation cleared", "evicted", len(evicted))
}

func (p *Presence) onResolved(handle domain.RemoteHandle, token uint64, res domain.Result) {
	current, inFlight := p.pending[handle]
	if !inFlight || current != token {
		if token == 0 || token > p.nextToken {
			p.violation(fmt.Errorf("%w: resolution %d for %s was never issued", errors.ErrInvalidHandleState, token, handle))
			return
		}
		p.stats.IncrDiscardedResults()
		p.log.Debug("Discarding superseded resolution", "handle", handle)
		return
	}
	delete(p.pending, handle)

	entry, tracked := p.registry.Get(handle)
	if !tracked {
		p.stats.IncrDiscardedResults()
		p.log.Debug("Discarding resolution of an evicted handle", "handle", handle)
		return
	}
	if entry.State != domain.Resolving {
		p.violation(fmt.Errorf("%w: %s resolved while %s", errors.ErrInvalidHandleState, handle, entry.State))
		return
	}

	if res.Err != nil {
		p.registry.Remove(handle)
		p.stats.IncrResolutionsFailed()
		p.log.Debug("Dropping unresolved peer", "handle", handle, "error", res.Err)
		return
	}

	p.registry.Activate(handle, res.Value)
	p.names[handle] = res.Value
	p.stats.IncrPeersJoined()
	p.sink.PeerJoined(res.Value)
}

func (p *Presence) violation(err error) {
	if p.strict {
		panic(err)
	}
	p.log.Error("Presence invariant violated", "error", err)
}
