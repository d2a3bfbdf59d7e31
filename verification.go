package loopclosure

import (
	"context"
	"path/filepath"
	"time"
)

// verifyLoop drains ready candidates at the configured tick interval until
// shutdown.
func (s *Service) verifyLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.shutdown.Load() {
				return nil
			}
			s.verifyTick(ctx)
		}
	}
}

// verifyTick moves ready candidates into a local batch under the registry
// and store locks, then runs matching and RANSAC lock-free: the batched
// frames are immutable once stored.
func (s *Service) verifyTick(ctx context.Context) {
	batch := s.cand.DrainReady(s.frames, s.opts.verifyBatchSize)
	for _, c := range batch {
		fq, okq := s.frames.Get(c.Query)
		fm, okm := s.frames.Get(c.Match)
		if !okq || !okm {
			continue
		}

		res, err := s.verifier.Verify(fq, fm)
		if err != nil {
			s.opts.logger.LogRejected(c.Query, c.Match, err)
			continue
		}

		edge := Edge{Src: c.Query, Dst: c.Match, Pose: res.Pose}
		s.appendEdge(ctx, edge)
		s.opts.logger.LogEdge(c.Query, c.Match, res.Inliers, res.Matches)
	}
}

// appendEdge records a verified edge, rewrites the CSV debug log from the
// updated snapshot, and publishes the edge downstream.
func (s *Service) appendEdge(ctx context.Context, edge Edge) {
	s.edgesMu.Lock()
	s.edges = append(s.edges, edge)
	snapshot := make([]Edge, len(s.edges))
	copy(snapshot, s.edges)
	s.edgesMu.Unlock()

	s.opts.stats.RecordEdge()

	path := filepath.Join(s.cfg.LogOutputPath, "loop_closures.csv")
	if err := SaveLoopClosures(path, snapshot); err != nil {
		s.opts.logger.Warn("edge log write failed", "path", path, "error", err)
	}
	if err := s.transport.PublishEdge(ctx, edge); err != nil {
		s.opts.logger.Warn("edge publish failed",
			"src", edge.Src.String(), "dst", edge.Dst.String(), "error", err)
	}
}
