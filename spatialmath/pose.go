// Package spatialmath implements the rigid-transform algebra used by the
// kinematics and IK packages. Transforms are stored as unit dual quaternions.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform in 3-D space: a rotation followed by a translation.
type Pose struct {
	q dualquat.Number
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{},
	}}
}

// NewPose returns a pose with the given translation and R3 axis-angle rotation.
func NewPose(pt, aa r3.Vector) Pose {
	p := Pose{dualquat.Number{Real: R3AAToQuat(aa)}}
	p.setTranslation(pt)
	return p
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(pt r3.Vector) Pose {
	p := NewZeroPose()
	p.setTranslation(pt)
	return p
}

// NewPoseFromAxisAngle returns a pure rotation of theta radians about the given axis.
func NewPoseFromAxisAngle(axis r3.Vector, theta float64) Pose {
	return Pose{dualquat.Number{Real: R3AAToQuat(axis.Normalize().Mul(theta))}}
}

// setTranslation sets the dual part against the current rotation.
func (p *Pose) setTranslation(pt r3.Vector) {
	p.q.Dual = quat.Mul(quat.Number{Imag: pt.X / 2, Jmag: pt.Y / 2, Kmag: pt.Z / 2}, p.q.Real)
}

// Point returns the translation component.
func (p Pose) Point() r3.Vector {
	t := quat.Scale(2, quat.Mul(p.q.Dual, quat.Conj(p.q.Real)))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// Rotation returns the rotation component as a unit quaternion.
func (p Pose) Rotation() quat.Number {
	return p.q.Real
}

// Compose returns the transform equivalent to applying b, then a. The real
// part is renormalized so long products of transforms do not drift off the
// unit hypersphere.
func Compose(a, b Pose) Pose {
	q := dualquat.Mul(a.q, b.q)
	if vecLen := quat.Abs(q.Real); vecLen != 1 {
		q.Real = quat.Scale(1/vecLen, q.Real)
		q.Dual = quat.Scale(1/vecLen, q.Dual)
	}
	return Pose{q}
}

// PoseDelta returns the difference between two poses as a 6-vector: the
// translation delta followed by the R3 axis-angle rotation taking `from` to
// `to`, both in the frame the poses are expressed in.
// Quaternion/axis-angle is used for the rotation part because distances are
// well-defined.
func PoseDelta(from, to Pose) []float64 {
	pt := to.Point().Sub(from.Point())
	aa := QuatToR3AA(quat.Mul(to.q.Real, quat.Conj(from.q.Real)))
	return []float64{pt.X, pt.Y, pt.Z, aa.X, aa.Y, aa.Z}
}

// RotateVec rotates a vector by a unit quaternion.
func RotateVec(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// QuatToR3AA converts a rotation quaternion to an R3 axis angle in the same
// way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR3AA(q quat.Number) r3.Vector {
	denom := vecNorm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return r3.Vector{X: angle}
	}
	return r3.Vector{X: angle * q.Imag / denom, Y: angle * q.Jmag / denom, Z: angle * q.Kmag / denom}
}

// R3AAToQuat converts an R3 axis angle to a rotation quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func R3AAToQuat(aa r3.Vector) quat.Number {
	angle := aa.Norm()
	if angle < 1e-6 {
		// Zero angle is the identity quaternion
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(angle / 2)
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: (aa.X / angle) * sinA,
		Jmag: (aa.Y / angle) * sinA,
		Kmag: (aa.Z / angle) * sinA,
	}
}

// vecNorm returns the norm of the imaginary parts of a quaternion.
func vecNorm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}
