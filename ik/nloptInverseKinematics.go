package ik

import (
	"context"
	"math"
	"time"

	"github.com/go-nlopt/nlopt"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	spatial "github.com/tu-darmstadt-ros-pkg/hector-trac-ik/spatialmath"
)

const (
	nloptStepsPerIter = 4001
	// How much to adjust joints to determine slope
	defaultJump = 1e-8
	// Range given to the optimizer for joints without finite limits
	continuousBound = 999
)

// nloptIK is the nonlinear inner solver: SLSQP minimizing the weighted
// sum-of-squares pose error with joint limits as hard constraints. Free axes
// get weight zero so position-only and partially-constrained solves fall out
// of the same objective.
type nloptIK struct {
	s *Solver
}

func (ik *nloptIK) solve(
	ctx context.Context,
	seed []float64,
	goal spatial.Pose,
	tol [6]float64,
	deadline time.Time,
	abort *atomic.Bool,
) ([]float64, bool) {
	n := ik.s.chain.DoF()
	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(n))
	if err != nil {
		ik.s.logger.Debugw("nlopt creation error", "error", err)
		return nil, false
	}
	defer opt.Destroy()

	lower, upper := ik.optimizerBounds()

	var weights [6]float64
	for k, t := range tol {
		if t < spatial.FreeAxisTol {
			weights[k] = 1
		}
	}

	sumSq := func(x []float64) (float64, bool) {
		pose, err := ik.s.chain.Transform(x)
		if err != nil {
			return 0, false
		}
		delta := spatial.PoseDelta(pose, goal)
		dist := 0.0
		for k, d := range delta {
			dist += weights[k] * d * d
		}
		return dist, true
	}

	// Gradient is, under the hood, a structure the optimizer expects us to
	// mutate in place.
	nloptMinFunc := func(x, gradient []float64) float64 {
		if abort.Load() || !ik.s.clk.Now().Before(deadline) || ctx.Err() != nil {
			if stopErr := opt.ForceStop(); stopErr != nil {
				ik.s.logger.Debugw("forcestop error", "error", stopErr)
			}
			return 0
		}

		dist, ok := sumSq(x)
		if !ok {
			if stopErr := opt.ForceStop(); stopErr != nil {
				ik.s.logger.Debugw("forcestop error", "error", stopErr)
			}
			return 0
		}

		xTest := append([]float64(nil), x...)
		for i := range gradient {
			flip := false
			xTest[i] = x[i] + defaultJump
			if xTest[i] >= upper[i] {
				flip = true
				xTest[i] = x[i] - defaultJump
			}
			dist2, ok := sumSq(xTest)
			xTest[i] = x[i]
			if !ok {
				if stopErr := opt.ForceStop(); stopErr != nil {
					ik.s.logger.Debugw("forcestop error", "error", stopErr)
				}
				return 0
			}
			gradient[i] = (dist2 - dist) / defaultJump
			if flip {
				gradient[i] *= -1
			}
		}
		return dist
	}

	// Machine epsilon: the gap between 1 and the next larger float64
	floatEpsilon := math.Nextafter(1, 2) - 1
	err = multierr.Combine(
		opt.SetFtolAbs(floatEpsilon),
		opt.SetFtolRel(floatEpsilon),
		opt.SetLowerBounds(lower),
		opt.SetMinObjective(nloptMinFunc),
		opt.SetStopVal(ik.s.eps*ik.s.eps),
		opt.SetUpperBounds(upper),
		opt.SetXtolAbs1(floatEpsilon),
		opt.SetXtolRel(floatEpsilon),
		opt.SetMaxEval(nloptStepsPerIter),
	)
	if err != nil {
		ik.s.logger.Debugw("nlopt setup error", "error", err)
		return nil, false
	}

	x0 := make([]float64, n)
	for i, v := range seed {
		x0[i] = math.Max(lower[i], math.Min(upper[i], v))
	}

	solution, _, nloptErr := opt.Optimize(x0)
	if nloptErr != nil {
		// This just *happens* sometimes due to weirdnesses in nonlinear
		// randomized problems. Ignore it, a later restart or the other
		// strategy will find a solution.
		ik.s.logger.Debugw("nlopt optimize error", "error", nloptErr)
	}
	if solution == nil {
		return nil, false
	}

	pose, err := ik.s.chain.Transform(solution)
	if err != nil {
		return nil, false
	}
	if !withinEps(maskDelta(spatial.PoseDelta(pose, goal), tol), ik.s.eps) {
		return nil, false
	}
	return solution, true
}

// optimizerBounds returns the hard joint constraints handed to nlopt.
// Continuous joints carry the zero or float32-max sentinel in lb/ub, neither
// of which the optimizer can use, so they get a wide finite range instead.
func (ik *nloptIK) optimizerBounds() ([]float64, []float64) {
	lower := make([]float64, len(ik.s.lb))
	upper := make([]float64, len(ik.s.ub))
	for i := range ik.s.lb {
		if ik.s.classes[i] == classContinuous {
			lower[i] = -continuousBound
			upper[i] = continuousBound
			continue
		}
		lower[i] = math.Max(ik.s.lb[i], -continuousBound)
		upper[i] = math.Min(ik.s.ub[i], continuousBound)
	}
	return lower, upper
}
