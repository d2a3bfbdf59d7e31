package vlc

import (
	"sort"
	"sync"
)

// Edge is an unverified loop-closure hypothesis between a query vertex and
// a matched vertex.
type Edge struct {
	Query VertexID
	Match VertexID
}

// CandidateRegistry tracks unverified candidate edges. Candidates wait in
// per-robot pending lists until both endpoint frames are resident, then
// move to a FIFO ready queue for verification. All methods are safe for
// concurrent use; the registry mutex may be held while probing a
// FrameStore, never the other way around.
type CandidateRegistry struct {
	mu      sync.Mutex
	pending map[uint16][]Edge
	ready   []Edge
}

// NewCandidateRegistry creates an empty registry.
func NewCandidateRegistry() *CandidateRegistry {
	return &CandidateRegistry{pending: make(map[uint16][]Edge)}
}

// Insert files a candidate under the given robot key. Deduplication is the
// caller's concern: detection produces each (query, match) pair at most
// once.
func (r *CandidateRegistry) Insert(robot uint16, e Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[robot] = append(r.pending[robot], e)
}

// PendingVertices returns the endpoint vertices of robot's pending
// candidates that are not yet resident in store, deduplicated and sorted.
func (r *CandidateRegistry) PendingVertices(robot uint16, store *FrameStore) []VertexID {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[VertexID]struct{})
	for _, e := range r.pending[robot] {
		for _, v := range [2]VertexID{e.Query, e.Match} {
			if _, ok := seen[v]; ok {
				continue
			}
			if store.Contains(v) {
				continue
			}
			seen[v] = struct{}{}
		}
	}

	out := make([]VertexID, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// DrainReady moves every pending candidate whose both endpoint frames are
// resident in store onto the ready queue, then pops and returns up to n
// candidates from the front of the queue in FIFO order.
func (r *CandidateRegistry) DrainReady(store *FrameStore, n int) []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()

	for robot, edges := range r.pending {
		remain := edges[:0]
		for _, e := range edges {
			if store.Contains(e.Query) && store.Contains(e.Match) {
				r.ready = append(r.ready, e)
			} else {
				remain = append(remain, e)
			}
		}
		if len(remain) == 0 {
			delete(r.pending, robot)
		} else {
			r.pending[robot] = remain
		}
	}

	if n < 0 || n > len(r.ready) {
		n = len(r.ready)
	}
	batch := make([]Edge, n)
	copy(batch, r.ready[:n])
	r.ready = r.ready[n:]
	return batch
}

// ReadyLen returns the ready queue depth.
func (r *CandidateRegistry) ReadyLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ready)
}

// PendingLen returns the total number of pending candidates.
func (r *CandidateRegistry) PendingLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, edges := range r.pending {
		n += len(edges)
	}
	return n
}
