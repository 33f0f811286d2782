package domain

type PeerState int

const (
	Resolving PeerState = iota
	Active
	Disconnected
)

func (s PeerState) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PeerEntry is the tracked state of one RemoteHandle.
// DisplayName stays nil until the name resolution completes.
type PeerEntry struct {
	Handle      RemoteHandle
	State       PeerState
	DisplayName *string
}

func NewResolvingEntry(handle RemoteHandle) PeerEntry {
	return PeerEntry{Handle: handle, State: Resolving}
}

func NewActiveEntry(handle RemoteHandle, name string) PeerEntry {
	return PeerEntry{Handle: handle, State: Active, DisplayName: &name}
}

func (e PeerEntry) Name() (string, bool) {
	if e.DisplayName == nil {
		return "", false
	}
	return *e.DisplayName, true
}

func (e PeerEntry) IsActive() bool { return e.State == Active }
