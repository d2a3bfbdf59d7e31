package vlc

import "sync"

// RequestTracker remembers which vertex ids have been requested from each
// peer, keyed by the comms tick that issued the request. An id stays
// filtered while its request is at most one tick old; after that Expire
// drops it (unless the frame arrived meanwhile) so the next tick may
// re-request it from a peer that dropped the message.
type RequestTracker struct {
	mu        sync.Mutex
	requested map[uint16]map[VertexID]uint64
}

// NewRequestTracker creates an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{requested: make(map[uint16]map[VertexID]uint64)}
}

// Filter returns the ids not currently tracked as requested from peer,
// preserving input order.
func (t *RequestTracker) Filter(peer uint16, ids []VertexID) []VertexID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := t.requested[peer][id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Mark records ids as requested from peer at the given tick.
func (t *RequestTracker) Mark(peer uint16, ids []VertexID, tick uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.requested[peer]
	if !ok {
		m = make(map[VertexID]uint64)
		t.requested[peer] = m
	}
	for _, id := range ids {
		m[id] = tick
	}
}

// Expire drops entries that became resident in store, and entries more
// than one tick old whose frames never arrived.
func (t *RequestTracker) Expire(tick uint64, store *FrameStore) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for peer, m := range t.requested {
		for id, at := range m {
			if store.Contains(id) || tick > at+1 {
				delete(m, id)
			}
		}
		if len(m) == 0 {
			delete(t.requested, peer)
		}
	}
}

// Outstanding returns the number of tracked requests for peer.
func (t *RequestTracker) Outstanding(peer uint16) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requested[peer])
}
