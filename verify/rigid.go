package verify

import (
	"errors"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/roboswarm/loopclosure/spatial"
)

var (
	// ErrInsufficientPoints is returned when fewer than three point pairs
	// are available for rigid estimation.
	ErrInsufficientPoints = errors.New("rigid estimation needs at least 3 point pairs")

	// ErrPointCountMismatch is returned when src and dst differ in length.
	ErrPointCountMismatch = errors.New("src and dst point counts differ")

	// ErrDegenerateGeometry is returned when the point configuration does
	// not determine a rotation (e.g. collinear samples).
	ErrDegenerateGeometry = errors.New("degenerate point configuration")
)

// EstimateRigid solves the absolute-orientation problem for the rigid
// transform T with dst_i ≈ R·src_i + t, using the SVD of the centered
// cross-covariance with reflection correction.
func EstimateRigid(src, dst []r3.Vector) (spatial.Pose, error) {
	if len(src) != len(dst) {
		return spatial.Pose{}, ErrPointCountMismatch
	}
	n := len(src)
	if n < 3 {
		return spatial.Pose{}, ErrInsufficientPoints
	}

	var cs, cd r3.Vector
	for i := 0; i < n; i++ {
		cs = cs.Add(src[i])
		cd = cd.Add(dst[i])
	}
	cs = cs.Mul(1 / float64(n))
	cd = cd.Mul(1 / float64(n))

	h := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		p := src[i].Sub(cs)
		q := dst[i].Sub(cd)
		pv := [3]float64{p.X, p.Y, p.Z}
		qv := [3]float64{q.X, q.Y, q.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+pv[r]*qv[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return spatial.Pose{}, ErrDegenerateGeometry
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rot := mat.NewDense(3, 3, nil)
	rot.Mul(&v, u.T())

	// A negative determinant means the best orthogonal fit is a
	// reflection; flip the sign of V's last column to recover a proper
	// rotation.
	if mat.Det(rot) < 0 {
		for r := 0; r < 3; r++ {
			v.Set(r, 2, -v.At(r, 2))
		}
		rot.Mul(&v, u.T())
	}

	rcs := r3.Vector{
		X: rot.At(0, 0)*cs.X + rot.At(0, 1)*cs.Y + rot.At(0, 2)*cs.Z,
		Y: rot.At(1, 0)*cs.X + rot.At(1, 1)*cs.Y + rot.At(1, 2)*cs.Z,
		Z: rot.At(2, 0)*cs.X + rot.At(2, 1)*cs.Y + rot.At(2, 2)*cs.Z,
	}
	t := cd.Sub(rcs)

	return spatial.FromMatrix(rot, t)
}
