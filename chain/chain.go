// Package chain models serial kinematic chains and evaluates their forward
// kinematics and geometric Jacobians.
package chain

import (
	"github.com/golang/geo/r3"

	spatial "github.com/tu-darmstadt-ros-pkg/hector-trac-ik/spatialmath"
)

// JointType enumerates the kinds of joint a segment can carry.
type JointType int

const (
	// Fixed joints contribute no degree of freedom.
	Fixed JointType = iota
	// Revolute joints rotate about their axis.
	Revolute
	// Prismatic joints translate along their axis.
	Prismatic
)

// Joint is a single movable (or fixed) articulation.
type Joint struct {
	Type JointType
	// Axis is the joint axis in the segment's local frame. Ignored for Fixed.
	Axis r3.Vector
}

// Segment couples a joint with the fixed transform from the joint frame to
// the segment tip.
type Segment struct {
	Name  string
	Joint Joint
	Tip   spatial.Pose
}

// RevoluteSegment returns a segment rotating about the given axis.
func RevoluteSegment(name string, axis r3.Vector, tip spatial.Pose) Segment {
	return Segment{Name: name, Joint: Joint{Type: Revolute, Axis: axis.Normalize()}, Tip: tip}
}

// PrismaticSegment returns a segment translating along the given axis.
func PrismaticSegment(name string, axis r3.Vector, tip spatial.Pose) Segment {
	return Segment{Name: name, Joint: Joint{Type: Prismatic, Axis: axis.Normalize()}, Tip: tip}
}

// FixedSegment returns a segment with no degree of freedom.
func FixedSegment(name string, tip spatial.Pose) Segment {
	return Segment{Name: name, Joint: Joint{Type: Fixed}, Tip: tip}
}

// Chain is an ordered serial linkage from base to end-effector.
type Chain struct {
	segments []Segment
	dof      int
}

// New assembles a chain from base-to-tip segments.
func New(segments ...Segment) *Chain {
	c := &Chain{segments: segments}
	for _, seg := range segments {
		if seg.Joint.Type != Fixed {
			c.dof++
		}
	}
	return c
}

// DoF returns the number of movable joints.
func (c *Chain) DoF() int {
	return c.dof
}

// Segments returns the chain's segments in base-to-tip order.
func (c *Chain) Segments() []Segment {
	return c.segments
}
