package loopclosure

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/roboswarm/loopclosure/bow"
	"github.com/roboswarm/loopclosure/verify"
	"github.com/roboswarm/loopclosure/vlc"
)

// Service is one robot's loop-closure detection instance. It owns the BoW
// databases, the frame store, the candidate registry, the verified edge
// list, and the two background workers that drive frame exchange and
// geometric verification.
//
// Lock order. A goroutine must acquire in this order and never the
// reverse:
//
//	1. lcdMu          BoW databases and detection state
//	2. cand mutex     candidate registry (internal to CandidateRegistry)
//	3. frames mutex   frame store (internal to FrameStore)
//	4. edgesMu        verified edges
//	5. vlcServiceMu   serializes the blocking local VIO call
//
// Locks #2-#4 are never held across blocking I/O; #5 wraps exactly the one
// blocking FetchLocalFrame call.
type Service struct {
	cfg  Config
	opts options

	transport Transport
	local     LocalFrameService
	vocab     *bow.Vocabulary
	verifier  *verify.Verifier

	lcdMu         sync.Mutex
	localDB       *bow.Database
	sharedDB      *bow.Database
	sharedVertex  map[int]vlc.VertexID
	latestBow     bow.Vector
	nextLocalPose uint32

	cand   *vlc.CandidateRegistry
	frames *vlc.FrameStore

	edgesMu sync.Mutex
	edges   []Edge

	vlcServiceMu sync.Mutex

	tracker    *vlc.RequestTracker
	tickCount  atomic.Uint64
	fetchGroup singleflight.Group
	limiter    *rate.Limiter

	statsMu  sync.Mutex
	bowBytes map[uint16]int64
	vlcBytes map[uint16]int64

	started  atomic.Bool
	shutdown atomic.Bool
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// New builds a Service from a validated Config. transport publishes
// outbound messages; local resolves our own poses into frames. The
// vocabulary is loaded during construction.
func New(ctx context.Context, cfg Config, transport Transport, local LocalFrameService, optFns ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	if local == nil {
		return nil, ErrNilFrameService
	}

	opts := applyOptions(optFns)

	vocab, err := bow.Load(ctx, opts.vocabStore, cfg.VocabularyPath)
	if err != nil {
		return nil, &ErrInvalidConfig{Key: "vocabulary_path", Reason: "vocabulary load failed", cause: err}
	}

	s := &Service{
		cfg:       cfg,
		opts:      opts,
		transport: transport,
		local:     local,
		vocab:     vocab,
		verifier: verify.NewVerifier(func(o *verify.Options) {
			o.LoweRatio = cfg.LoweRatio
			o.MaxRANSACIterations = cfg.MaxRansacIterations
			o.RANSACThreshold = cfg.RansacThreshold
			o.MinInlierCount = cfg.MinInlierCount
			o.MinInlierPercentage = cfg.MinInlierPercentage
			o.Seed = opts.seed
		}),
		localDB:      bow.NewDatabase(),
		sharedDB:     bow.NewDatabase(),
		sharedVertex: make(map[int]vlc.VertexID),
		cand:         vlc.NewCandidateRegistry(),
		frames:       vlc.NewFrameStore(),
		tracker:      vlc.NewRequestTracker(),
		limiter:      rate.NewLimiter(opts.requestRate, opts.requestBurst),
		bowBytes:     make(map[uint16]int64),
		vlcBytes:     make(map[uint16]int64),
	}

	s.opts.logger.Info("loop closure service configured",
		"robot_id", cfg.RobotID,
		"num_robots", cfg.NumRobots,
		"vocabulary_path", cfg.VocabularyPath,
		"vocabulary_words", vocab.Words(),
		"alpha", cfg.Alpha,
		"dist_local", cfg.DistLocal,
		"max_db_results", cfg.MaxDBResults,
		"base_nss_factor", cfg.BaseNSSFactor,
		"min_nss_factor", cfg.MinNSSFactor,
		"lowe_ratio", cfg.LoweRatio,
		"max_ransac_iterations", cfg.MaxRansacIterations,
		"ransac_threshold", cfg.RansacThreshold,
		"min_inlier_count", cfg.MinInlierCount,
		"min_inlier_percentage", cfg.MinInlierPercentage,
		"vlc_batch_size", cfg.VLCBatchSize,
		"log_output_path", cfg.LogOutputPath,
	)

	return s, nil
}

// Start launches the comms and verify workers. It returns immediately;
// the workers run until Close or context cancellation.
func (s *Service) Start(ctx context.Context) error {
	if s.shutdown.Load() {
		return ErrClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	s.group = g
	g.Go(func() error { return s.commsLoop(ctx) })
	g.Go(func() error { return s.verifyLoop(ctx) })

	s.opts.logger.Info("loop closure service started", "robot_id", s.cfg.RobotID)
	return nil
}

// Close requests shutdown, waits for the workers to drain, and writes the
// communication statistics log. Close is idempotent.
func (s *Service) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.group != nil {
		err = s.group.Wait()
	}
	if statErr := s.writeCommStats(); statErr != nil && err == nil {
		err = statErr
	}
	s.opts.logger.Info("loop closure service stopped", "robot_id", s.cfg.RobotID)
	return err
}

// LoopClosures returns a snapshot of the verified edges in emission order.
func (s *Service) LoopClosures() []Edge {
	s.edgesMu.Lock()
	defer s.edgesMu.Unlock()
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// SaveLoopClosures writes the current verified edges as CSV to path.
func (s *Service) SaveLoopClosures(path string) error {
	return SaveLoopClosures(path, s.LoopClosures())
}

func (s *Service) recordBowTraffic(robot uint16, bytes int) {
	s.statsMu.Lock()
	s.bowBytes[robot] += int64(bytes)
	s.statsMu.Unlock()
	s.opts.stats.RecordBowReceived(robot, bytes)
}

func (s *Service) recordVLCTraffic(robot uint16, bytes int) {
	s.statsMu.Lock()
	s.vlcBytes[robot] += int64(bytes)
	s.statsMu.Unlock()
	s.opts.stats.RecordVLCReceived(robot, bytes)
}

func (s *Service) writeCommStats() error {
	s.statsMu.Lock()
	bow := make(map[uint16]int64, len(s.bowBytes))
	for r, b := range s.bowBytes {
		bow[r] = b
	}
	vlcB := make(map[uint16]int64, len(s.vlcBytes))
	for r, b := range s.vlcBytes {
		vlcB[r] = b
	}
	s.statsMu.Unlock()

	path := filepath.Join(s.cfg.LogOutputPath, "comm_stats.csv")
	return saveCommStats(path, s.cfg.NumRobots, bow, vlcB)
}
