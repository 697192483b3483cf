package ik

import (
	"math"
	"sync"
)

// configEqualTol is the per-component tolerance under which two
// configurations are considered the same solution.
const configEqualTol = 1e-5

// scoredIndex pairs a solution's score with its insertion index so the final
// sort can break score ties by insertion order.
type scoredIndex struct {
	score float64
	index int
}

// solutionPool is the de-duplicated store both workers append to. The pool
// only ever grows: tryInsert reserves a score slot under the lock, computes
// the score with the lock released, then rewrites the slot. Scores must not
// be read until all workers have terminated.
type solutionPool struct {
	mu        sync.Mutex
	solutions [][]float64
	scores    []scoredIndex
}

func newSolutionPool() *solutionPool {
	return &solutionPool{}
}

// tryInsert appends q and its score unless an equal configuration is already
// pooled. The score function may be expensive and runs outside the lock so
// one worker's scoring never serializes the other's inserts.
func (p *solutionPool) tryInsert(q []float64, score func([]float64) float64) bool {
	p.mu.Lock()
	for _, existing := range p.solutions {
		if configsEqual(existing, q) {
			p.mu.Unlock()
			return false
		}
	}
	p.solutions = append(p.solutions, q)
	idx := len(p.solutions) - 1
	p.scores = append(p.scores, scoredIndex{index: idx})
	p.mu.Unlock()

	v := score(q)

	p.mu.Lock()
	p.scores[idx].score = v
	p.mu.Unlock()
	return true
}

func (p *solutionPool) empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.solutions) == 0
}

// snapshot returns the pooled solutions and scores. Only meaningful once
// both workers have terminated.
func (p *solutionPool) snapshot() ([][]float64, []scoredIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]float64(nil), p.solutions...), append([]scoredIndex(nil), p.scores...)
}

// configsEqual reports whether every component of two configurations differs
// by less than configEqualTol.
func configsEqual(a, b []float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) >= configEqualTol {
			return false
		}
	}
	return true
}
