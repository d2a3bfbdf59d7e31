// Package loopclosure implements the distributed inter-robot loop-closure
// detection core of a multi-robot visual SLAM system.
//
// Each robot runs one Service. Robots exchange compact bag-of-words place
// descriptors continuously and, on demand, heavier visual-localization
// frames (3D keypoints plus binary descriptors). For every incoming BoW
// vector the service decides whether a loop closure exists against its own
// trajectory or against the shared database of peer trajectories, fetches
// the frames needed for geometric verification, and emits verified 6-DoF
// relative pose constraints to the downstream consumer.
//
// # Quick Start
//
//	cfg, _ := loopclosure.LoadConfig("robot0.toml")
//	svc, _ := loopclosure.New(ctx, cfg, transport, vio,
//		loopclosure.WithLogLevel(slog.LevelInfo),
//	)
//	_ = svc.Start(ctx)
//	defer svc.Close()
//
//	// transport callbacks:
//	svc.HandleBow(msg)
//	svc.HandleVLCRequests(ctx, req)
//	svc.HandleVLCResponses(ctx, resp)
//
// Three workers cooperate: the ingest path (HandleBow) runs place
// recognition synchronously, the comms worker batches and rate-limits
// frame requests, and the verify worker runs descriptor matching and
// RANSAC on ready candidates.
package loopclosure
