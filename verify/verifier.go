package verify

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/roboswarm/loopclosure/spatial"
	"github.com/roboswarm/loopclosure/vlc"
)

// ErrMatchDegenerate is returned when fewer than three correspondences
// survive the ratio test, leaving RANSAC nothing to work with.
var ErrMatchDegenerate = errors.New("fewer than 3 correspondences after ratio test")

// ErrInlierGate indicates a RANSAC model rejected by the inlier gates.
type ErrInlierGate struct {
	Inliers       int
	Matches       int
	MinCount      int
	MinPercentage float64
}

func (e *ErrInlierGate) Error() string {
	return fmt.Sprintf("inlier gate: %d of %d inliers (need count >= %d, ratio >= %.2f)",
		e.Inliers, e.Matches, e.MinCount, e.MinPercentage)
}

// Options configures a Verifier.
type Options struct {
	// LoweRatio is the strict acceptance ratio of the 2-NN match filter.
	LoweRatio float64
	// MaxRANSACIterations caps pose sampling.
	MaxRANSACIterations int
	// RANSACThreshold is the inlier residual bound in keypoint units.
	RANSACThreshold float64
	// MinInlierCount is the absolute inlier floor.
	MinInlierCount int
	// MinInlierPercentage is the relative inlier floor in [0, 1].
	MinInlierPercentage float64
	// Seed seeds the RANSAC sampler.
	Seed int64
}

// DefaultOptions returns the verification defaults.
func DefaultOptions() Options {
	return Options{
		LoweRatio:           0.8,
		MaxRANSACIterations: 500,
		RANSACThreshold:     0.5,
		MinInlierCount:      10,
		MinInlierPercentage: 0.3,
		Seed:                1,
	}
}

// Result is a successful verification: the transform mapping query-frame
// points into the match frame, with its supporting counts.
type Result struct {
	Pose    spatial.Pose
	Inliers int
	Matches int
}

// Verifier runs the full geometric verification pipeline on candidate
// frame pairs. Safe for use from a single worker; the sampler state is not
// synchronized.
type Verifier struct {
	opts Options
	rng  *rand.Rand
}

// NewVerifier creates a Verifier.
func NewVerifier(optFns ...func(o *Options)) *Verifier {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Verifier{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Verify matches descriptors between the query and match frames, estimates
// a rigid transform with RANSAC, and applies the inlier gates. On success
// the returned pose maps query-frame points into the match frame
// (p_match ≈ T · p_query). Failures are ErrMatchDegenerate, ErrNoModel, or
// *ErrInlierGate.
func (vf *Verifier) Verify(query, match *vlc.Frame) (Result, error) {
	qi, mi := MatchDescriptors(query.Descriptors, match.Descriptors, vf.opts.LoweRatio)
	if len(qi) < 3 {
		return Result{}, ErrMatchDegenerate
	}

	src := make([]r3.Vector, len(qi))
	dst := make([]r3.Vector, len(mi))
	for i := range qi {
		src[i] = query.Keypoints[qi[i]]
		dst[i] = match.Keypoints[mi[i]]
	}

	pose, inliers, err := RunRANSAC(src, dst, func(o *RANSACOptions) {
		o.MaxIterations = vf.opts.MaxRANSACIterations
		o.InlierThreshold = vf.opts.RANSACThreshold
		o.RNG = vf.rng
	})
	if err != nil {
		return Result{}, err
	}

	k, n := len(inliers), len(qi)
	if k < vf.opts.MinInlierCount || float64(k)/float64(n) < vf.opts.MinInlierPercentage {
		return Result{}, &ErrInlierGate{
			Inliers:       k,
			Matches:       n,
			MinCount:      vf.opts.MinInlierCount,
			MinPercentage: vf.opts.MinInlierPercentage,
		}
	}

	return Result{Pose: pose, Inliers: k, Matches: n}, nil
}
