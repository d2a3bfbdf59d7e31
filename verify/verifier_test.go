package verify

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/roboswarm/loopclosure/spatial"
	"github.com/roboswarm/loopclosure/vlc"
)

// testFrame builds a frame with n distinct 32-byte descriptors and grid
// keypoints transformed by pose.
func testFrame(v vlc.VertexID, n int, pose spatial.Pose) *vlc.Frame {
	f := &vlc.Frame{
		Vertex:      v,
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

func TestVerifyIdenticalFramesYieldsIdentity(t *testing.T) {
	n := 12
	query := testFrame(vlc.VertexID{Robot: 0, Pose: 1}, n, spatial.Identity())
	match := testFrame(vlc.VertexID{Robot: 0, Pose: 9}, n, spatial.Identity())

	vf := NewVerifier(func(o *Options) { o.MinInlierCount = 3 })
	res, err := vf.Verify(query, match)
	require.NoError(t, err)

	assert.Equal(t, n, res.Matches)
	assert.Equal(t, n, res.Inliers)
	assert.True(t, res.Pose.ApproxEqual(spatial.Identity(), 1e-6))
}

func TestVerifyRecoversRelativePose(t *testing.T) {
	want := spatial.NewPose(
		quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2},
		r3.Vector{X: 1, Y: -2, Z: 3},
	)

	n := 12
	query := testFrame(vlc.VertexID{Robot: 0, Pose: 4}, n, spatial.Identity())
	match := testFrame(vlc.VertexID{Robot: 1, Pose: 7}, n, want)

	vf := NewVerifier(func(o *Options) { o.MinInlierCount = 3 })
	res, err := vf.Verify(query, match)
	require.NoError(t, err)

	// The emitted pose maps query keypoints into the match frame.
	assert.True(t, res.Pose.ApproxEqual(want, 1e-6))
	for i, p := range query.Keypoints {
		d := res.Pose.TransformPoint(p).Sub(match.Keypoints[i]).Norm()
		assert.Less(t, d, 1e-6)
	}
}

func TestVerifyDegenerateMatch(t *testing.T) {
	query := testFrame(vlc.VertexID{Robot: 0, Pose: 1}, 12, spatial.Identity())
	tiny := testFrame(vlc.VertexID{Robot: 1, Pose: 1}, 1, spatial.Identity())

	vf := NewVerifier()
	_, err := vf.Verify(query, tiny)
	assert.ErrorIs(t, err, ErrMatchDegenerate)
}

func TestVerifyInlierGates(t *testing.T) {
	n := 20
	query := testFrame(vlc.VertexID{Robot: 0, Pose: 2}, n, spatial.Identity())
	match := testFrame(vlc.VertexID{Robot: 1, Pose: 5}, n, spatial.Identity())
	// Displace a quarter of the match keypoints far outside the residual
	// threshold so only 15 of 20 correspondences are inliers.
	for i := 15; i < n; i++ {
		match.Keypoints[i] = match.Keypoints[i].Add(r3.Vector{X: 30, Z: -30})
	}

	strict := NewVerifier(func(o *Options) {
		o.MinInlierCount = 3
		o.MinInlierPercentage = 0.9
	})
	_, err := strict.Verify(query, match)
	require.Error(t, err)

	var gate *ErrInlierGate
	require.ErrorAs(t, err, &gate)
	assert.Equal(t, 15, gate.Inliers)
	assert.Equal(t, 20, gate.Matches)

	relaxed := NewVerifier(func(o *Options) {
		o.MinInlierCount = 3
		o.MinInlierPercentage = 0.5
	})
	res, err := relaxed.Verify(query, match)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Inliers)

	count := NewVerifier(func(o *Options) {
		o.MinInlierCount = 16
		o.MinInlierPercentage = 0.1
	})
	_, err = count.Verify(query, match)
	require.ErrorAs(t, err, &gate)
	assert.Equal(t, 16, gate.MinCount)
}
