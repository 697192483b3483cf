package ik

import "math"

// normalizeSeed re-homes rotational joint values to within one revolution of
// the seed, then back inside joint limits by multiples of 2*pi. Prismatic
// joints are untouched.
func (s *Solver) normalizeSeed(seed, solution []float64) {
	s.normalize(solution, func(i int) float64 { return seed[i] })
}

// normalizeLimits re-homes bounded rotational joints to within one revolution
// of the middle of their limits; continuous joints are still normalized
// against the seed since they have no meaningful mid-range.
func (s *Solver) normalizeLimits(seed, solution []float64) {
	s.normalize(solution, func(i int) float64 {
		if s.classes[i] == classRevolute {
			return (s.ub[i] + s.lb[i]) / 2
		}
		return seed[i]
	})
}

// normalize is deliberately lossy: the solvers converge in a local linear
// regime where 2*pi shifts of revolute angles preserve the pose, so the
// adjusted value is not re-verified against the pose tolerance.
func (s *Solver) normalize(solution []float64, target func(i int) float64) {
	for i := range solution {
		if s.classes[i] == classPrismatic {
			continue
		}

		tgt := target(i)
		val := solution[i]

		if val > tgt+math.Pi {
			// Find the actual angle offset, add it to the target, and go back a full rotation
			val = tgt + math.Mod(val-tgt, 2*math.Pi) - 2*math.Pi
		}
		if val < tgt-math.Pi {
			val = tgt - math.Mod(tgt-val, 2*math.Pi) + 2*math.Pi
		}

		if s.classes[i] == classContinuous {
			solution[i] = val
			continue
		}

		if val > s.ub[i] {
			val = s.ub[i] + math.Mod(val-s.ub[i], 2*math.Pi) - 2*math.Pi
		}
		if val < s.lb[i] {
			val = s.lb[i] - math.Mod(s.lb[i]-val, 2*math.Pi) + 2*math.Pi
		}

		solution[i] = val
	}
}
