package loopclosure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/roboswarm/loopclosure/bow"
	"github.com/roboswarm/loopclosure/spatial"
	"github.com/roboswarm/loopclosure/vlc"
)

func writeVocab(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("1000\n"), 0o644))
	return path
}

func testConfig(t *testing.T, numRobots uint16) Config {
	t.Helper()
	return Config{
		RobotID:             0,
		NumRobots:           numRobots,
		VocabularyPath:      writeVocab(t),
		Alpha:               1.05,
		DistLocal:           5,
		MaxDBResults:        5,
		BaseNSSFactor:       0.5,
		MinNSSFactor:        0.3,
		LoweRatio:           0.8,
		MaxRansacIterations: 500,
		RansacThreshold:     0.5,
		MinInlierCount:      3,
		MinInlierPercentage: 0.3,
		VLCBatchSize:        3,
		LogOutputPath:       t.TempDir(),
	}
}

type stubTransport struct {
	mu        sync.Mutex
	requests  []VLCRequests
	responses []VLCResponses
	edges     []Edge
}

func (tr *stubTransport) PublishVLCRequests(_ context.Context, req VLCRequests) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.requests = append(tr.requests, req)
	return nil
}

func (tr *stubTransport) PublishVLCResponses(_ context.Context, resp VLCResponses) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.responses = append(tr.responses, resp)
	return nil
}

func (tr *stubTransport) PublishEdge(_ context.Context, edge Edge) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.edges = append(tr.edges, edge)
	return nil
}

func (tr *stubTransport) Requests() []VLCRequests {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]VLCRequests, len(tr.requests))
	copy(out, tr.requests)
	return out
}

func (tr *stubTransport) Edges() []Edge {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]Edge, len(tr.edges))
	copy(out, tr.edges)
	return out
}

func (tr *stubTransport) Responses() []VLCResponses {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]VLCResponses, len(tr.responses))
	copy(out, tr.responses)
	return out
}

type stubFrameService struct {
	mu     sync.Mutex
	frames map[uint32]*vlc.Frame
	calls  int
}

func newStubFrameService() *stubFrameService {
	return &stubFrameService{frames: make(map[uint32]*vlc.Frame)}
}

func (s *stubFrameService) set(pose uint32, f *vlc.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[pose] = f
}

func (s *stubFrameService) FetchLocalFrame(_ context.Context, pose uint32) (*vlc.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	f, ok := s.frames[pose]
	if !ok {
		return nil, fmt.Errorf("pose %d not tracked", pose)
	}
	cp := *f
	return &cp, nil
}

// makeTestFrame builds a frame with n distinct descriptors and grid
// keypoints transformed by pose. The vertex is left for the caller.
func makeTestFrame(n int, pose spatial.Pose) *vlc.Frame {
	f := &vlc.Frame{
		Keypoints:   make([]r3.Vector, n),
		Descriptors: make([][]byte, n),
	}
	for i := 0; i < n; i++ {
		d := make([]byte, 32)
		for j := range d {
			d[j] = byte((i*31 + j*7) % 251)
		}
		f.Descriptors[i] = d
		f.Keypoints[i] = pose.TransformPoint(r3.Vector{
			X: float64(i%5) * 3,
			Y: float64((i/5)%5) * 3,
			Z: float64(i%3) * 2,
		})
	}
	return f
}

func newTestService(t *testing.T, cfg Config, optFns ...Option) (*Service, *stubTransport, *stubFrameService) {
	t.Helper()
	transport := &stubTransport{}
	local := newStubFrameService()
	opts := append([]Option{WithRequestRate(rate.Inf, 1)}, optFns...)
	s, err := New(context.Background(), cfg, transport, local, opts...)
	require.NoError(t, err)
	return s, transport, local
}

func TestNewRejectsNilDependencies(t *testing.T) {
	cfg := testConfig(t, 1)

	_, err := New(context.Background(), cfg, nil, newStubFrameService())
	assert.ErrorIs(t, err, ErrNilTransport)

	_, err = New(context.Background(), cfg, &stubTransport{}, nil)
	assert.ErrorIs(t, err, ErrNilFrameService)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Alpha = 0

	_, err := New(context.Background(), cfg, &stubTransport{}, newStubFrameService())
	var cerr *ErrInvalidConfig
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "alpha", cerr.Key)
}

func TestNewRejectsMissingVocabulary(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.VocabularyPath = filepath.Join(t.TempDir(), "missing.txt")

	_, err := New(context.Background(), cfg, &stubTransport{}, newStubFrameService())
	var cerr *ErrInvalidConfig
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "vocabulary_path", cerr.Key)
}

func TestServiceLifecycle(t *testing.T) {
	s, _, _ := newTestService(t, testConfig(t, 1), WithTickInterval(10*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(context.Background()), ErrClosed)
}

func TestHandleBowAfterCloseIsDropped(t *testing.T) {
	s, _, _ := newTestService(t, testConfig(t, 1))
	require.NoError(t, s.Close())

	msg := &BowMessage{RobotID: 0, PoseID: 0, Vector: bow.New(map[uint32]float32{1: 1})}
	assert.NoError(t, s.HandleBow(msg))
	assert.Zero(t, s.localDB.Size())
}

func TestCommStatsWrittenOnClose(t *testing.T) {
	cfg := testConfig(t, 2)
	stats := NewBasicStatsObserver()
	s, _, _ := newTestService(t, cfg, WithStatsObserver(stats))

	self := &BowMessage{RobotID: 0, PoseID: 0, Vector: bow.New(map[uint32]float32{1: 1})}
	require.NoError(t, s.HandleBow(self))

	// A peer message rejected for an out-of-range word still counts as
	// received traffic.
	bad := &BowMessage{RobotID: 1, PoseID: 0, Vector: bow.New(map[uint32]float32{2000: 1})}
	require.Error(t, s.HandleBow(bad))

	match := makeTestFrame(4, spatial.Identity())
	match.Vertex = vlc.VertexID{Robot: 1, Pose: 3}
	resp := VLCResponses{From: 1, To: 0, Frames: []*vlc.Frame{match}}
	require.NoError(t, s.HandleVLCResponses(context.Background(), resp))

	require.NoError(t, s.Close())

	assert.Equal(t, int64(self.ByteSize()), stats.BowBytes(0))
	assert.Equal(t, int64(bad.ByteSize()), stats.BowBytes(1))
	assert.Equal(t, int64(resp.ByteSize()), stats.VLCBytes(1))

	data, err := os.ReadFile(filepath.Join(cfg.LogOutputPath, "comm_stats.csv"))
	require.NoError(t, err)
	want := fmt.Sprintf("robot,bow_bytes_received,vlc_bytes_received\n0,%d,0\n1,%d,%d\n",
		self.ByteSize(), bad.ByteSize(), resp.ByteSize())
	assert.Equal(t, want, string(data))
}

func TestByteSizes(t *testing.T) {
	msg := &BowMessage{Vector: bow.New(map[uint32]float32{1: 1, 2: 1, 3: 2})}
	assert.Equal(t, 8+8*3, msg.ByteSize())

	f := makeTestFrame(2, spatial.Identity())
	resp := &VLCResponses{Frames: []*vlc.Frame{f}}
	assert.Equal(t, 4+8+12*2+2*32, resp.ByteSize())
}
