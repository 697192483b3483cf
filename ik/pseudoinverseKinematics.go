package ik

import (
	"context"
	"math"
	"time"

	"go.uber.org/atomic"
	"gonum.org/v1/gonum/mat"

	spatial "github.com/tu-darmstadt-ros-pkg/hector-trac-ik/spatialmath"
)

const (
	// Iteration cap per attempt; past this the outer loop resamples the seed.
	pinvMaxIterations = 200
	// Step-norm floor below which the descent has stalled in a basin it
	// cannot leave and the attempt is abandoned.
	pinvStallTol = 1e-10
	// Largest per-component Newton step; full steps far from the goal can
	// overshoot into a worse basin.
	pinvMaxStep = math.Pi / 2
	// Relative singular-value cutoff for the pseudoinverse.
	pinvRcond = 1e-10
)

// pinvIK is the KDL-style inner solver: Newton steps through an SVD
// pseudoinverse of the Jacobian applied to the masked pose error.
type pinvIK struct {
	s *Solver
}

func (ik *pinvIK) solve(
	ctx context.Context,
	seed []float64,
	goal spatial.Pose,
	tol [6]float64,
	deadline time.Time,
	abort *atomic.Bool,
) ([]float64, bool) {
	q := append([]float64(nil), seed...)

	for iter := 0; iter < pinvMaxIterations; iter++ {
		if abort.Load() || !ik.s.clk.Now().Before(deadline) || ctx.Err() != nil {
			return nil, false
		}

		pose, err := ik.s.chain.Transform(q)
		if err != nil {
			return nil, false
		}
		delta := maskDelta(spatial.PoseDelta(pose, goal), tol)
		if withinEps(delta, ik.s.eps) {
			return q, true
		}

		jac, err := ik.s.chain.Jacobian(q)
		if err != nil {
			return nil, false
		}
		dq := pinvApply(jac, delta)
		if dq == nil {
			return nil, false
		}

		stepNorm := 0.0
		for i, v := range dq {
			if v > pinvMaxStep {
				dq[i] = pinvMaxStep
			} else if v < -pinvMaxStep {
				dq[i] = -pinvMaxStep
			}
			stepNorm += dq[i] * dq[i]
		}
		if stepNorm < pinvStallTol*pinvStallTol {
			return nil, false
		}

		for i := range q {
			q[i] += dq[i]
			if ik.s.classes[i] != classContinuous {
				if q[i] < ik.s.lb[i] {
					q[i] = ik.s.lb[i]
				}
				if q[i] > ik.s.ub[i] {
					q[i] = ik.s.ub[i]
				}
			}
		}
	}
	return nil, false
}

// pinvApply computes pinv(j) * e via a thin SVD, dropping singular values
// below pinvRcond of the largest.
func pinvApply(j *mat.Dense, e []float64) []float64 {
	var svd mat.SVD
	if !svd.Factorize(j, mat.SVDThin) {
		return nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)
	if len(vals) == 0 || vals[0] == 0 {
		return nil
	}
	cutoff := pinvRcond * vals[0]

	rows, n := j.Dims()
	tmp := make([]float64, len(vals))
	for c := range vals {
		if vals[c] <= cutoff {
			continue
		}
		dot := 0.0
		for r := 0; r < rows; r++ {
			dot += u.At(r, c) * e[r]
		}
		tmp[c] = dot / vals[c]
	}
	dq := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for c := range vals {
			sum += v.At(i, c) * tmp[c]
		}
		dq[i] = sum
	}
	return dq
}

// maskDelta zeroes pose-error components that are inside their per-axis
// tolerance or whose axis is free.
func maskDelta(raw []float64, tol [6]float64) []float64 {
	for k := range raw {
		if tol[k] >= spatial.FreeAxisTol || math.Abs(raw[k]) < tol[k] {
			raw[k] = 0
		}
	}
	return raw
}

// withinEps reports whether every masked error component is below eps.
func withinEps(delta []float64, eps float64) bool {
	for _, d := range delta {
		if math.Abs(d) >= eps {
			return false
		}
	}
	return true
}
