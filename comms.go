package loopclosure

import (
	"context"
	"time"

	"github.com/roboswarm/loopclosure/vlc"
)

// commsLoop drives the outbound frame-request path at the configured tick
// interval until shutdown.
func (s *Service) commsLoop(ctx context.Context) error {
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
			s.commsTick(ctx)
		}
	}
}

// commsTick expires stale request bookkeeping, resolves self frames
// through the local VIO, and issues batched, rate-limited frame requests
// to peers. Outbound requests are withheld while the verify queue sits
// above the high-water mark.
func (s *Service) commsTick(ctx context.Context) {
	tick := s.tickCount.Add(1)
	s.tracker.Expire(tick, s.frames)

	depth := s.cand.ReadyLen()
	s.opts.stats.RecordQueueDepth(depth)

	for robot := uint16(0); robot < s.cfg.NumRobots; robot++ {
		pending := s.cand.PendingVertices(robot, s.frames)
		if len(pending) == 0 {
			continue
		}

		var peerIDs []vlc.VertexID
		for _, v := range pending {
			if v.Robot == s.cfg.RobotID {
				if _, err := s.fetchLocalFrame(ctx, v); err != nil {
					s.opts.logger.Warn("local frame fetch failed, retrying next tick",
						"vertex", v.String(), "error", err)
				}
			} else {
				peerIDs = append(peerIDs, v)
			}
		}

		if robot == s.cfg.RobotID || len(peerIDs) == 0 {
			continue
		}
		if depth > s.opts.queueHighWater {
			s.opts.logger.Debug("verify queue above high-water mark, skipping requests",
				"peer", robot, "depth", depth)
			continue
		}

		batch := s.tracker.Filter(robot, peerIDs)
		if len(batch) > s.cfg.VLCBatchSize {
			batch = batch[:s.cfg.VLCBatchSize]
		}
		if len(batch) == 0 {
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		req := VLCRequests{From: s.cfg.RobotID, To: robot, IDs: batch}
		if err := s.transport.PublishVLCRequests(ctx, req); err != nil {
			s.opts.logger.Warn("frame request publish failed", "peer", robot, "error", err)
			continue
		}
		s.tracker.Mark(robot, batch, tick)
		s.opts.logger.Debug("frame request sent", "peer", robot, "ids", len(batch))
	}
}

// fetchLocalFrame resolves one of our own vertices into a frame, caching
// it in the frame store. A resident frame is never fetched again;
// concurrent fetches of the same vertex collapse to a single VIO call.
func (s *Service) fetchLocalFrame(ctx context.Context, v vlc.VertexID) (*vlc.Frame, error) {
	if f, ok := s.frames.Get(v); ok {
		return f, nil
	}
	res, err, _ := s.fetchGroup.Do(v.String(), func() (any, error) {
		if f, ok := s.frames.Get(v); ok {
			return f, nil
		}
		s.vlcServiceMu.Lock()
		f, err := s.local.FetchLocalFrame(ctx, v.Pose)
		s.vlcServiceMu.Unlock()
		if err != nil {
			return nil, &ErrLocalFrameUnavailable{Vertex: v, cause: err}
		}
		f.Vertex = v
		s.frames.Put(f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*vlc.Frame), nil
}

// HandleVLCRequests serves a peer's frame request out of the local VIO and
// frame store. Poses the VIO cannot resolve are silently omitted from the
// response.
func (s *Service) HandleVLCRequests(ctx context.Context, req VLCRequests) error {
	if s.shutdown.Load() || req.To != s.cfg.RobotID {
		return nil
	}

	var frames []*vlc.Frame
	for _, id := range req.IDs {
		if id.Robot != s.cfg.RobotID {
			continue
		}
		f, err := s.fetchLocalFrame(ctx, id)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return nil
	}

	resp := VLCResponses{From: s.cfg.RobotID, To: req.From, Frames: frames}
	if err := s.transport.PublishVLCResponses(ctx, resp); err != nil {
		s.opts.logger.Warn("frame response publish failed", "peer", req.From, "error", err)
		return err
	}
	return nil
}

// HandleVLCResponses caches frames received from a peer. Frames for ids we
// never requested are stored anyway; the store is insertion-only and the
// first write wins.
func (s *Service) HandleVLCResponses(_ context.Context, resp VLCResponses) error {
	if s.shutdown.Load() {
		return nil
	}

	s.recordVLCTraffic(resp.From, resp.ByteSize())

	for _, f := range resp.Frames {
		if f == nil {
			continue
		}
		s.frames.Put(f)
	}
	return nil
}
