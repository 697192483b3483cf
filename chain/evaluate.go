package chain

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	spatial "github.com/tu-darmstadt-ros-pkg/hector-trac-ik/spatialmath"
)

var errBadConfiguration = errors.New("configuration length does not match chain DoF")

// Transform computes the end-effector pose for a configuration. It is pure
// and reentrant.
func (c *Chain) Transform(q []float64) (spatial.Pose, error) {
	if len(q) != c.dof {
		return spatial.NewZeroPose(), errors.Wrapf(errBadConfiguration, "got %d values for %d DoF", len(q), c.dof)
	}
	cur := spatial.NewZeroPose()
	idx := 0
	for _, seg := range c.segments {
		switch seg.Joint.Type {
		case Revolute:
			cur = spatial.Compose(cur, spatial.NewPoseFromAxisAngle(seg.Joint.Axis, q[idx]))
			idx++
		case Prismatic:
			cur = spatial.Compose(cur, spatial.NewPoseFromPoint(seg.Joint.Axis.Mul(q[idx])))
			idx++
		case Fixed:
		}
		cur = spatial.Compose(cur, seg.Tip)
	}
	return cur, nil
}

// Jacobian computes the 6xN geometric Jacobian at the end-effector for a
// configuration: rows are the base-frame linear velocity then angular
// velocity response to each joint rate. It is pure and reentrant.
func (c *Chain) Jacobian(q []float64) (*mat.Dense, error) {
	if len(q) != c.dof {
		return nil, errors.Wrapf(errBadConfiguration, "got %d values for %d DoF", len(q), c.dof)
	}

	origins := make([]r3.Vector, 0, c.dof)
	axes := make([]r3.Vector, 0, c.dof)
	kinds := make([]JointType, 0, c.dof)

	cur := spatial.NewZeroPose()
	idx := 0
	for _, seg := range c.segments {
		if seg.Joint.Type != Fixed {
			origins = append(origins, cur.Point())
			axes = append(axes, spatial.RotateVec(cur.Rotation(), seg.Joint.Axis))
			kinds = append(kinds, seg.Joint.Type)
			switch seg.Joint.Type {
			case Revolute:
				cur = spatial.Compose(cur, spatial.NewPoseFromAxisAngle(seg.Joint.Axis, q[idx]))
			case Prismatic:
				cur = spatial.Compose(cur, spatial.NewPoseFromPoint(seg.Joint.Axis.Mul(q[idx])))
			case Fixed:
			}
			idx++
		}
		cur = spatial.Compose(cur, seg.Tip)
	}
	eePoint := cur.Point()

	jac := mat.NewDense(6, c.dof, nil)
	for i := 0; i < c.dof; i++ {
		var lin, ang r3.Vector
		if kinds[i] == Revolute {
			lin = axes[i].Cross(eePoint.Sub(origins[i]))
			ang = axes[i]
		} else {
			lin = axes[i]
		}
		jac.Set(0, i, lin.X)
		jac.Set(1, i, lin.Y)
		jac.Set(2, i, lin.Z)
		jac.Set(3, i, ang.X)
		jac.Set(4, i, ang.Y)
		jac.Set(5, i, ang.Z)
	}
	return jac, nil
}
