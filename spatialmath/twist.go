package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// FreeAxisTol is the sentinel tolerance above which a twist axis is treated
// as free: its pose-error contribution is ignored entirely.
const FreeAxisTol = math.MaxFloat32

// Twist is a per-axis pose tolerance: absolute translational tolerance along
// x/y/z and rotational tolerance about x/y/z, in the frame the target pose is
// expressed in. The zero Twist demands exact convergence on every axis (up to
// the solver's epsilon).
type Twist struct {
	Vel r3.Vector
	Rot r3.Vector
}

// Array returns the tolerances in pose-delta component order.
func (t Twist) Array() [6]float64 {
	return [6]float64{t.Vel.X, t.Vel.Y, t.Vel.Z, t.Rot.X, t.Rot.Y, t.Rot.Z}
}

// PositionOnlyTwist returns a Twist that frees all three rotational axes,
// turning a solve into position-only IK.
func PositionOnlyTwist() Twist {
	free := r3.Vector{X: FreeAxisTol, Y: FreeAxisTol, Z: FreeAxisTol}
	return Twist{Rot: free}
}
