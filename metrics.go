package loopclosure

import (
	"sync"
	"sync/atomic"
)

// StatsObserver receives observability callbacks from the service.
// Implement this interface to integrate with monitoring systems.
type StatsObserver interface {
	// RecordBowReceived is called per ingested BoW message with its
	// approximate wire size.
	RecordBowReceived(robot uint16, bytes int)

	// RecordVLCReceived is called per received frame response with its
	// approximate wire size.
	RecordVLCReceived(robot uint16, bytes int)

	// RecordEdge is called for each verified edge.
	RecordEdge()

	// RecordQueueDepth is called each comms tick with the verify queue
	// depth.
	RecordQueueDepth(depth int)
}

// NoopStatsObserver is a no-op implementation of StatsObserver.
// Use this when observability is not needed.
type NoopStatsObserver struct{}

func (NoopStatsObserver) RecordBowReceived(uint16, int) {}
func (NoopStatsObserver) RecordVLCReceived(uint16, int) {}
func (NoopStatsObserver) RecordEdge()                   {}
func (NoopStatsObserver) RecordQueueDepth(int)          {}

// BasicStatsObserver provides simple in-memory counters.
// Useful for debugging and tests without external dependencies.
type BasicStatsObserver struct {
	mu       sync.Mutex
	bowBytes map[uint16]int64
	vlcBytes map[uint16]int64

	EdgeCount     atomic.Int64
	MaxQueueDepth atomic.Int64
}

// NewBasicStatsObserver creates a zeroed BasicStatsObserver.
func NewBasicStatsObserver() *BasicStatsObserver {
	return &BasicStatsObserver{
		bowBytes: make(map[uint16]int64),
		vlcBytes: make(map[uint16]int64),
	}
}

// RecordBowReceived implements StatsObserver.
func (b *BasicStatsObserver) RecordBowReceived(robot uint16, bytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bowBytes[robot] += int64(bytes)
}

// RecordVLCReceived implements StatsObserver.
func (b *BasicStatsObserver) RecordVLCReceived(robot uint16, bytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vlcBytes[robot] += int64(bytes)
}

// RecordEdge implements StatsObserver.
func (b *BasicStatsObserver) RecordEdge() {
	b.EdgeCount.Add(1)
}

// RecordQueueDepth implements StatsObserver.
func (b *BasicStatsObserver) RecordQueueDepth(depth int) {
	for {
		cur := b.MaxQueueDepth.Load()
		if int64(depth) <= cur || b.MaxQueueDepth.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// BowBytes returns the BoW bytes received from robot.
func (b *BasicStatsObserver) BowBytes(robot uint16) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bowBytes[robot]
}

// VLCBytes returns the frame bytes received from robot.
func (b *BasicStatsObserver) VLCBytes(robot uint16) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vlcBytes[robot]
}

var _ StatsObserver = NoopStatsObserver{}
var _ StatsObserver = (*BasicStatsObserver)(nil)
