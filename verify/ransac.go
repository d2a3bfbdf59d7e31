package verify

import (
	"errors"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/roboswarm/loopclosure/spatial"
)

// ErrNoModel is returned when RANSAC fails to find a model supported by at
// least the minimal sample size.
var ErrNoModel = errors.New("ransac found no model")

// RANSACOptions configures the robust rigid-transform estimator.
type RANSACOptions struct {
	// MaxIterations caps the sampling loop.
	MaxIterations int
	// InlierThreshold is the point-to-point residual below which a
	// correspondence counts as an inlier.
	InlierThreshold float64
	// Confidence drives the adaptive iteration count: sampling stops once
	// the probability of having seen an all-inlier sample reaches it.
	Confidence float64
	// RNG is the sampling source. Defaults to a fixed-seed source so runs
	// are reproducible.
	RNG *rand.Rand
}

// DefaultRANSACOptions returns sensible defaults for ORB-scale data.
func DefaultRANSACOptions() RANSACOptions {
	return RANSACOptions{
		MaxIterations:   500,
		InlierThreshold: 0.5,
		Confidence:      0.99,
	}
}

// RunRANSAC estimates the rigid transform mapping src onto dst with
// 3-point sampling. It returns the refit model and the indices of its
// inliers, or ErrNoModel when no sample produces a model with at least
// three inliers.
func RunRANSAC(src, dst []r3.Vector, optFns ...func(o *RANSACOptions)) (spatial.Pose, []int, error) {
	opts := DefaultRANSACOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(1))
	}

	if len(src) != len(dst) {
		return spatial.Pose{}, nil, ErrPointCountMismatch
	}
	n := len(src)
	if n < 3 {
		return spatial.Pose{}, nil, ErrInsufficientPoints
	}

	var (
		best      spatial.Pose
		bestCount int
	)
	limit := opts.MaxIterations
	sampleSrc := make([]r3.Vector, 3)
	sampleDst := make([]r3.Vector, 3)

	for it := 0; it < limit; it++ {
		i, j, k := sample3(opts.RNG, n)
		sampleSrc[0], sampleSrc[1], sampleSrc[2] = src[i], src[j], src[k]
		sampleDst[0], sampleDst[1], sampleDst[2] = dst[i], dst[j], dst[k]

		model, err := EstimateRigid(sampleSrc, sampleDst)
		if err != nil {
			continue
		}

		count := countInliers(model, src, dst, opts.InlierThreshold)
		if count > bestCount {
			bestCount = count
			best = model
			limit = adaptiveLimit(count, n, opts.Confidence, opts.MaxIterations)
		}
	}

	if bestCount < 3 {
		return spatial.Pose{}, nil, ErrNoModel
	}

	inliers := collectInliers(best, src, dst, opts.InlierThreshold)
	if refit, err := refitOn(inliers, src, dst); err == nil {
		if count := countInliers(refit, src, dst, opts.InlierThreshold); count >= bestCount {
			best = refit
			inliers = collectInliers(best, src, dst, opts.InlierThreshold)
		}
	}
	return best, inliers, nil
}

func sample3(rng *rand.Rand, n int) (int, int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n)
	for j == i {
		j = rng.Intn(n)
	}
	k := rng.Intn(n)
	for k == i || k == j {
		k = rng.Intn(n)
	}
	return i, j, k
}

func residual(model spatial.Pose, s, d r3.Vector) float64 {
	return model.TransformPoint(s).Sub(d).Norm()
}

func countInliers(model spatial.Pose, src, dst []r3.Vector, thresh float64) int {
	count := 0
	for i := range src {
		if residual(model, src[i], dst[i]) < thresh {
			count++
		}
	}
	return count
}

func collectInliers(model spatial.Pose, src, dst []r3.Vector, thresh float64) []int {
	var inliers []int
	for i := range src {
		if residual(model, src[i], dst[i]) < thresh {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

func refitOn(inliers []int, src, dst []r3.Vector) (spatial.Pose, error) {
	s := make([]r3.Vector, len(inliers))
	d := make([]r3.Vector, len(inliers))
	for i, idx := range inliers {
		s[i] = src[idx]
		d[i] = dst[idx]
	}
	return EstimateRigid(s, d)
}

// adaptiveLimit returns the iteration count needed to hit the confidence
// target given the current inlier ratio, capped at maxIter.
func adaptiveLimit(inliers, n int, confidence float64, maxIter int) int {
	w := float64(inliers) / float64(n)
	p := w * w * w
	if p >= 1 {
		return 1
	}
	if p <= 0 {
		return maxIter
	}
	needed := math.Log(1-confidence) / math.Log(1-p)
	if math.IsNaN(needed) || needed > float64(maxIter) {
		return maxIter
	}
	if needed < 1 {
		return 1
	}
	return int(math.Ceil(needed))
}
