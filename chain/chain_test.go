package chain

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	spatial "github.com/tu-darmstadt-ros-pkg/hector-trac-ik/spatialmath"
)

func planarArm(l1, l2 float64) *Chain {
	return New(
		RevoluteSegment("shoulder", r3.Vector{Z: 1}, spatial.NewPoseFromPoint(r3.Vector{X: l1})),
		RevoluteSegment("elbow", r3.Vector{Z: 1}, spatial.NewPoseFromPoint(r3.Vector{X: l2})),
	)
}

func TestDoF(t *testing.T) {
	c := New(
		RevoluteSegment("j1", r3.Vector{Z: 1}, spatial.NewPoseFromPoint(r3.Vector{X: 1})),
		FixedSegment("mount", spatial.NewPoseFromPoint(r3.Vector{Z: 0.1})),
		PrismaticSegment("slide", r3.Vector{X: 1}, spatial.NewZeroPose()),
	)
	test.That(t, c.DoF(), test.ShouldEqual, 2)
}

func TestPlanarForward(t *testing.T) {
	c := planarArm(1, 0.7)
	for _, q := range [][]float64{{0, 0}, {0.3, -0.4}, {math.Pi / 2, math.Pi / 4}, {-1.1, 2.2}} {
		pose, err := c.Transform(q)
		test.That(t, err, test.ShouldBeNil)
		pt := pose.Point()
		test.That(t, pt.X, test.ShouldAlmostEqual, math.Cos(q[0])+0.7*math.Cos(q[0]+q[1]), 1e-9)
		test.That(t, pt.Y, test.ShouldAlmostEqual, math.Sin(q[0])+0.7*math.Sin(q[0]+q[1]), 1e-9)
		test.That(t, pt.Z, test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestPrismaticForward(t *testing.T) {
	c := New(
		PrismaticSegment("lift", r3.Vector{Z: 1}, spatial.NewZeroPose()),
		RevoluteSegment("wrist", r3.Vector{Z: 1}, spatial.NewPoseFromPoint(r3.Vector{X: 0.5})),
	)
	pose, err := c.Transform([]float64{0.25, math.Pi / 2})
	test.That(t, err, test.ShouldBeNil)
	pt := pose.Point()
	test.That(t, pt.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, pt.Z, test.ShouldAlmostEqual, 0.25, 1e-9)
}

func TestBadConfiguration(t *testing.T) {
	c := planarArm(1, 1)
	_, err := c.Transform([]float64{0})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = c.Jacobian([]float64{0, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)
}

// Jacobian columns should match finite differences of the forward kinematics.
func TestJacobianFiniteDifference(t *testing.T) {
	c := New(
		RevoluteSegment("j1", r3.Vector{Z: 1}, spatial.NewPoseFromPoint(r3.Vector{X: 0.4})),
		RevoluteSegment("j2", r3.Vector{Y: 1}, spatial.NewPoseFromPoint(r3.Vector{X: 0.4})),
		PrismaticSegment("j3", r3.Vector{X: 1}, spatial.NewPoseFromPoint(r3.Vector{X: 0.2})),
	)
	q := []float64{0.3, -0.7, 0.15}
	jac, err := c.Jacobian(q)
	test.That(t, err, test.ShouldBeNil)

	base, err := c.Transform(q)
	test.That(t, err, test.ShouldBeNil)

	// h must stay above the axis-angle small-rotation cutoff
	const h = 1e-5
	for i := 0; i < c.DoF(); i++ {
		qh := append([]float64(nil), q...)
		qh[i] += h
		bumped, err := c.Transform(qh)
		test.That(t, err, test.ShouldBeNil)
		delta := spatial.PoseDelta(base, bumped)
		for row := 0; row < 6; row++ {
			test.That(t, jac.At(row, i), test.ShouldAlmostEqual, delta[row]/h, 5e-4)
		}
	}
}
