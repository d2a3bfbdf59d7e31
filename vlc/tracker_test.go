package vlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerFilterAndMark(t *testing.T) {
	tr := NewRequestTracker()
	ids := []VertexID{{Robot: 2, Pose: 1}, {Robot: 2, Pose: 2}}

	assert.Equal(t, ids, tr.Filter(2, ids))

	tr.Mark(2, ids[:1], 1)
	assert.Equal(t, ids[1:], tr.Filter(2, ids))
	assert.Equal(t, 1, tr.Outstanding(2))

	// Marks are per peer.
	assert.Equal(t, ids, tr.Filter(3, ids))
}

func TestTrackerExpireOnResidency(t *testing.T) {
	tr := NewRequestTracker()
	store := NewFrameStore()
	id := VertexID{Robot: 2, Pose: 1}

	tr.Mark(2, []VertexID{id}, 1)
	store.Put(&Frame{Vertex: id})

	tr.Expire(1, store)
	assert.Equal(t, 0, tr.Outstanding(2))
}

func TestTrackerExpireAfterTwoTicks(t *testing.T) {
	tr := NewRequestTracker()
	store := NewFrameStore()
	id := VertexID{Robot: 2, Pose: 2}

	tr.Mark(2, []VertexID{id}, 1)

	// Still filtered one tick later, re-requestable the tick after.
	tr.Expire(2, store)
	assert.Empty(t, tr.Filter(2, []VertexID{id}))

	tr.Expire(3, store)
	assert.Equal(t, []VertexID{id}, tr.Filter(2, []VertexID{id}))
	assert.Equal(t, 0, tr.Outstanding(2))
}
