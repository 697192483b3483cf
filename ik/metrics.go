package ik

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// jointErr is the seed-distance score: the sum of squared per-joint
// differences from the seed. Continuous joints are excluded; their 2*pi
// ambiguity would make the score depend on which revolution the solver
// landed in. Lower is better.
func (s *Solver) jointErr(seed, q []float64) float64 {
	err := 0.0
	for i := range q {
		if s.classes[i] == classContinuous {
			continue
		}
		d := q[i] - seed[i]
		err += d * d
	}
	return err
}

// manipPenalty is in [0, 1): it peaks at the center of every bounded joint
// range and goes to zero at any bound, biasing Manip scores away from limits.
func (s *Solver) manipPenalty(q []float64) float64 {
	penalty := 1.0
	for i := range q {
		if s.classes[i] == classContinuous {
			continue
		}
		jRange := s.ub[i] - s.lb[i]
		penalty *= (q[i] - s.lb[i]) * (s.ub[i] - q[i]) / (jRange * jRange)
	}
	return 1.0 - math.Exp(-penalty)
}

// manipValue1 is the Yoshikawa-style manipulability: the product of the
// Jacobian's singular values. Higher is better.
func (s *Solver) manipValue1(q []float64) float64 {
	vals := s.jacobianSingularValues(q)
	if vals == nil {
		return 0
	}
	manip := 1.0
	for _, sv := range vals {
		manip *= sv
	}
	return manip
}

// manipValue2 is the Jacobian condition measure sigma_min / sigma_max.
// Higher is better; a singular Jacobian scores 0.
func (s *Solver) manipValue2(q []float64) float64 {
	vals := s.jacobianSingularValues(q)
	if len(vals) == 0 || vals[0] == 0 {
		return 0
	}
	// gonum returns singular values in descending order
	return vals[len(vals)-1] / vals[0]
}

func (s *Solver) jacobianSingularValues(q []float64) []float64 {
	jac, err := s.chain.Jacobian(q)
	if err != nil {
		return nil
	}
	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDNone) {
		return nil
	}
	return svd.Values(nil)
}
