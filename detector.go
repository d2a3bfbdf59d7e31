package loopclosure

import (
	"fmt"

	"github.com/roboswarm/loopclosure/vlc"
)

// HandleBow is the ingest callback: it runs place recognition for one BoW
// message and inserts the vector into the appropriate database. Messages
// from robots with an id below ours are the other side's responsibility
// and are dropped; self messages must arrive in pose order. The call does
// pure in-memory work; frame fetches triggered by registered candidates
// happen on the comms worker.
//
// Rejections are logged and returned; callers integrating a transport may
// ignore the error.
func (s *Service) HandleBow(msg *BowMessage) error {
	if s.shutdown.Load() {
		return nil
	}

	s.recordBowTraffic(msg.RobotID, msg.ByteSize())

	if err := s.validateBow(msg); err != nil {
		s.opts.logger.Warn("bow ingest rejected", "robot", msg.RobotID, "pose", msg.PoseID, "error", err)
		return err
	}

	q := vlc.VertexID{Robot: msg.RobotID, Pose: msg.PoseID}
	self := msg.RobotID == s.cfg.RobotID

	s.lcdMu.Lock()
	defer s.lcdMu.Unlock()

	if self && msg.PoseID != s.nextLocalPose {
		err := &ErrBowIngest{
			Robot:  msg.RobotID,
			Pose:   msg.PoseID,
			Reason: fmt.Sprintf("pose out of sequence, expected %d", s.nextLocalPose),
		}
		s.opts.logger.Warn("bow ingest rejected", "robot", msg.RobotID, "pose", msg.PoseID, "error", err)
		return err
	}

	s.detectLocal(q, msg, self)
	if self {
		s.detectShared(q, msg)
	}

	if self {
		s.localDB.Add(msg.Vector)
		s.latestBow = msg.Vector
		s.nextLocalPose++
	} else {
		id := s.sharedDB.Add(msg.Vector)
		s.sharedVertex[id] = q
	}
	return nil
}

func (s *Service) validateBow(msg *BowMessage) error {
	if msg.RobotID < s.cfg.RobotID {
		return &ErrBowIngest{Robot: msg.RobotID, Pose: msg.PoseID, Reason: "robot id below ours"}
	}
	if msg.RobotID >= s.cfg.NumRobots {
		return &ErrBowIngest{Robot: msg.RobotID, Pose: msg.PoseID, Reason: "robot id out of range"}
	}
	if err := s.vocab.Validate(msg.Vector); err != nil {
		return &ErrBowIngest{Robot: msg.RobotID, Pose: msg.PoseID, Reason: err.Error()}
	}
	return nil
}

// detectLocal queries our own trajectory. Self queries normalize the
// acceptance threshold by the similarity to the latest self vector (NSS)
// and exclude the recent window of DistLocal poses; peer queries use the
// configured base factor against the full trajectory. Caller holds lcdMu.
func (s *Service) detectLocal(q vlc.VertexID, msg *BowMessage, self bool) {
	nss := s.cfg.BaseNSSFactor
	if self {
		if s.latestBow == nil {
			return
		}
		nss = s.vocab.Score(msg.Vector, s.latestBow)
		if nss < s.cfg.MinNSSFactor {
			s.opts.logger.Debug("self similarity below floor, skipping local detection",
				"pose", q.Pose, "nss", nss)
			return
		}
	}

	maxID := int(s.nextLocalPose) - 1
	if self {
		maxID = int(s.nextLocalPose) - int(s.cfg.DistLocal) - 1
	}
	if maxID < 0 {
		return
	}

	results := s.localDB.Query(msg.Vector, s.cfg.MaxDBResults, maxID)
	if len(results) == 0 || results[0].Score < s.cfg.Alpha*nss {
		return
	}
	match := vlc.VertexID{Robot: s.cfg.RobotID, Pose: uint32(results[0].ID)}
	s.registerCandidate(q, match, results[0].Score)
}

// detectShared queries the peer trajectories. Only self queries are
// matched against the shared database; a peer's own vectors are matched by
// that peer. Caller holds lcdMu.
func (s *Service) detectShared(q vlc.VertexID, msg *BowMessage) {
	results := s.sharedDB.Query(msg.Vector, s.cfg.MaxDBResults, -1)
	if len(results) == 0 || results[0].Score < s.cfg.Alpha*s.cfg.BaseNSSFactor {
		return
	}
	match, ok := s.sharedVertex[results[0].ID]
	if !ok {
		return
	}
	s.registerCandidate(q, match, results[0].Score)
}

// registerCandidate files an unverified edge under the robot whose frames
// the comms worker must obtain: the non-self endpoint, or ourselves when
// both endpoints are local.
func (s *Service) registerCandidate(query, match vlc.VertexID, score float64) {
	peer := s.cfg.RobotID
	switch {
	case query.Robot != s.cfg.RobotID:
		peer = query.Robot
	case match.Robot != s.cfg.RobotID:
		peer = match.Robot
	}
	s.cand.Insert(peer, vlc.Edge{Query: query, Match: match})
	s.opts.logger.LogCandidate(query, match, score)
}
