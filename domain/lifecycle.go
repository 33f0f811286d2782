package domain

type LifecycleKind int

const (
	Discovered LifecycleKind = iota
	Lost
	Reconnected
)

func (k LifecycleKind) String() string {
	switch k {
	case Discovered:
		return "discovered"
	case Lost:
		return "disconnected"
	case Reconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// LifecycleEvent is emitted by the transport for every change of a handle's connection.
// Events of a same handle are delivered in the order the connection experienced them.
type LifecycleEvent struct {
	Handle RemoteHandle
	Kind   LifecycleKind
}

func NewDiscovered(h RemoteHandle) LifecycleEvent {
	return LifecycleEvent{Handle: h, Kind: Discovered}
}

func NewLost(h RemoteHandle) LifecycleEvent {
	return LifecycleEvent{Handle: h, Kind: Lost}
}

func NewReconnected(h RemoteHandle) LifecycleEvent {
	return LifecycleEvent{Handle: h, Kind: Reconnected}
}
