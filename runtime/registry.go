package runtime

import (
	"messenger/contract"
	"messenger/domain"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry is the authoritative set of peers currently part of the conversation.
// A handle is present iff its entry is Resolving or Active.
// Iteration follows insertion order so that a snapshot is stable.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.RemoteHandle]domain.PeerEntry
	order   []domain.RemoteHandle
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.RemoteHandle]domain.PeerEntry),
	}
}

// Add tracks a new entry. It returns false when the handle is already tracked
// or when the entry is not in a trackable state.
func (r *Registry) Add(entry domain.PeerEntry) bool {
	if entry.State == domain.Disconnected {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.Handle]; ok {
		return false
	}
	r.entries[entry.Handle] = entry
	r.order = append(r.order, entry.Handle)
	return true
}

func (r *Registry) Get(handle domain.RemoteHandle) (domain.PeerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[handle]
	return entry, ok
}

// Activate moves a tracked Resolving entry to Active with its resolved name.
func (r *Registry) Activate(handle domain.RemoteHandle, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[handle]
	if !ok || entry.State != domain.Resolving {
		return false
	}
	r.entries[handle] = domain.NewActiveEntry(handle, name)
	return true
}

// Remove evicts a handle and returns its last entry, marked Disconnected.
func (r *Registry) Remove(handle domain.RemoteHandle) (domain.PeerEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[handle]
	if !ok {
		return domain.PeerEntry{}, false
	}
	delete(r.entries, handle)
	r.order = lo.Without(r.order, handle)
	entry.State = domain.Disconnected
	return entry, true
}

// Clear evicts every entry at once and returns what was tracked.
func (r *Registry) Clear() []domain.PeerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := r.snapshotLocked()
	r.entries = make(map[domain.RemoteHandle]domain.PeerEntry)
	r.order = nil
	return evicted
}

// Snapshot returns every tracked entry in insertion order.
func (r *Registry) Snapshot() []domain.PeerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// ActivePeers returns the entries a broadcast must reach.
func (r *Registry) ActivePeers() []domain.PeerEntry {
	return lo.Filter(r.Snapshot(), func(entry domain.PeerEntry, _ int) bool {
		return entry.IsActive()
	})
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) snapshotLocked() []domain.PeerEntry {
	return lo.Map(r.order, func(handle domain.RemoteHandle, _ int) domain.PeerEntry {
		return r.entries[handle]
	})
}
