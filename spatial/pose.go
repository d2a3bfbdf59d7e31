// Package spatial provides the minimal rigid-body math used by loop-closure
// verification: an SE(3) pose represented as a unit quaternion plus a
// translation vector.
package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform. R is a unit quaternion (Real is the scalar
// part) and T the translation. Applying a Pose maps a point p to R·p + T.
type Pose struct {
	R quat.Number
	T r3.Vector
}

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{R: quat.Number{Real: 1}}
}

// NewPose constructs a Pose from a rotation quaternion and a translation.
// The quaternion is normalized; a zero quaternion yields the identity
// rotation.
func NewPose(r quat.Number, t r3.Vector) Pose {
	return Pose{R: normalize(r), T: t}
}

// FromMatrix constructs a Pose from a 3x3 rotation matrix and a translation.
// The matrix must be a proper rotation (orthonormal, determinant +1).
func FromMatrix(m mat.Matrix, t r3.Vector) (Pose, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return Pose{}, fmt.Errorf("rotation matrix must be 3x3, got %dx%d", r, c)
	}
	return Pose{R: quatFromMatrix(m), T: t}, nil
}

// Quaternion returns the rotation part.
func (p Pose) Quaternion() quat.Number { return p.R }

// Translation returns the translation part.
func (p Pose) Translation() r3.Vector { return p.T }

// TransformPoint applies the pose to a point.
func (p Pose) TransformPoint(v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(p.R, qv), quat.Conj(p.R))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}.Add(p.T)
}

// ApproxEqual reports whether two poses agree within tol: translation by
// Euclidean distance, rotation by quaternion dot product (sign-invariant,
// since q and -q encode the same rotation).
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	if p.T.Sub(o.T).Norm() > tol {
		return false
	}
	dot := p.R.Real*o.R.Real + p.R.Imag*o.R.Imag + p.R.Jmag*o.R.Jmag + p.R.Kmag*o.R.Kmag
	return 1-math.Abs(dot) <= tol
}

func (p Pose) String() string {
	return fmt.Sprintf("q=(%g,%g,%g,%g) t=(%g,%g,%g)",
		p.R.Imag, p.R.Jmag, p.R.Kmag, p.R.Real, p.T.X, p.T.Y, p.T.Z)
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// quatFromMatrix converts a rotation matrix to a quaternion using
// Shepperd's method, branching on the largest diagonal term for numerical
// stability.
func quatFromMatrix(m mat.Matrix) quat.Number {
	tr := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	var w, x, y, z float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = 0.25 * s
		x = (m.At(2, 1) - m.At(1, 2)) / s
		y = (m.At(0, 2) - m.At(2, 0)) / s
		z = (m.At(1, 0) - m.At(0, 1)) / s
	case m.At(0, 0) > m.At(1, 1) && m.At(0, 0) > m.At(2, 2):
		s := math.Sqrt(1+m.At(0, 0)-m.At(1, 1)-m.At(2, 2)) * 2
		w = (m.At(2, 1) - m.At(1, 2)) / s
		x = 0.25 * s
		y = (m.At(0, 1) + m.At(1, 0)) / s
		z = (m.At(0, 2) + m.At(2, 0)) / s
	case m.At(1, 1) > m.At(2, 2):
		s := math.Sqrt(1+m.At(1, 1)-m.At(0, 0)-m.At(2, 2)) * 2
		w = (m.At(0, 2) - m.At(2, 0)) / s
		x = (m.At(0, 1) + m.At(1, 0)) / s
		y = 0.25 * s
		z = (m.At(1, 2) + m.At(2, 1)) / s
	default:
		s := math.Sqrt(1+m.At(2, 2)-m.At(0, 0)-m.At(1, 1)) * 2
		w = (m.At(1, 0) - m.At(0, 1)) / s
		x = (m.At(0, 2) + m.At(2, 0)) / s
		y = (m.At(1, 2) + m.At(2, 1)) / s
		z = 0.25 * s
	}
	return normalize(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z})
}
