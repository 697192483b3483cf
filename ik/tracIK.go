// Package ik implements a concurrent inverse-kinematics solver for serial
// chains. Two strategies race against a shared deadline: a Jacobian
// pseudoinverse descent and an SLSQP nonlinear minimizer, each restarting
// from random seeds within joint limits. Solutions are merged into a
// de-duplicated pool and ranked by the configured solve type.
package ik

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/tu-darmstadt-ros-pkg/hector-trac-ik/chain"
	spatial "github.com/tu-darmstadt-ros-pkg/hector-trac-ik/spatialmath"
)

// SolveType selects when the race ends and how pooled candidates are ranked.
type SolveType int

const (
	// Speed returns as soon as either strategy produces a valid solution.
	Speed SolveType = iota
	// Distance runs the full deadline and minimizes squared joint distance from the seed.
	Distance
	// Manip1 runs the full deadline and maximizes penalty * product of Jacobian singular values.
	Manip1
	// Manip2 runs the full deadline and maximizes penalty * (sigma_min / sigma_max) of the Jacobian.
	Manip2
)

// SolveFailed is the status returned when the race finished with an empty pool.
const SolveFailed = -3

var (
	// ErrInvalidChain is returned by NewSolver when bound lengths disagree with the chain's DoF.
	ErrInvalidChain = errors.New("bound lengths do not match the chain's degrees of freedom")
	// ErrWrongDimension is returned by Solve when the seed length disagrees with the chain's DoF.
	ErrWrongDimension = errors.New("seed length does not match the chain's degrees of freedom")
	// ErrNoSolution is returned by Solve when no solution was found within the time budget.
	ErrNoSolution = errors.New("no solution found within the time budget")
	// ErrClosed is returned by Solve after Close.
	ErrClosed = errors.New("solver is closed")
)

// jointClass is the solver-side classification of each movable joint. A
// rotational joint whose bounds are both zero, or both at the float32
// sentinel, is continuous; both conventions appear in robot descriptions in
// the wild and both must be accepted.
type jointClass int

const (
	classRevolute jointClass = iota
	classContinuous
	classPrismatic
)

// Solver races a pseudoinverse IK strategy against a nonlinear optimizer.
// A Solver may be reused across many Solve calls but does not support
// concurrent Solve calls on the same instance.
type Solver struct {
	chain     *chain.Chain
	lb, ub    []float64
	classes   []jointClass
	maxTime   time.Duration
	eps       float64
	solveType SolveType
	logger    golog.Logger
	clk       clock.Clock

	rngSeed *atomic.Int64

	tasks     chan func()
	workers   sync.WaitGroup
	closed    *atomic.Bool
	closeOnce sync.Once
}

// NewSolver constructs a solver over the given chain and joint bounds. The
// worker pair is started here and joined by Close.
func NewSolver(
	c *chain.Chain,
	qMin, qMax []float64,
	maxTime time.Duration,
	eps float64,
	solveType SolveType,
	logger golog.Logger,
) (*Solver, error) {
	if len(qMin) != c.DoF() || len(qMax) != c.DoF() {
		return nil, errors.Wrapf(ErrInvalidChain, "%d lower and %d upper bounds for %d DoF", len(qMin), len(qMax), c.DoF())
	}

	s := &Solver{
		chain:     c,
		lb:        append([]float64(nil), qMin...),
		ub:        append([]float64(nil), qMax...),
		maxTime:   maxTime,
		eps:       eps,
		solveType: solveType,
		logger:    logger,
		clk:       clock.New(),
		rngSeed:   atomic.NewInt64(0),
		tasks:     make(chan func()),
		closed:    atomic.NewBool(false),
	}

	idx := 0
	for _, seg := range c.Segments() {
		switch seg.Joint.Type {
		case chain.Revolute:
			if (qMin[idx] == 0 && qMax[idx] == 0) ||
				(qMin[idx] <= -math.MaxFloat32 && qMax[idx] >= math.MaxFloat32) {
				s.classes = append(s.classes, classContinuous)
			} else {
				s.classes = append(s.classes, classRevolute)
			}
			idx++
		case chain.Prismatic:
			s.classes = append(s.classes, classPrismatic)
			idx++
		case chain.Fixed:
		}
	}

	for i := 0; i < 2; i++ {
		s.workers.Add(1)
		goutils.PanicCapturingGo(func() {
			defer s.workers.Done()
			for task := range s.tasks {
				task()
			}
		})
	}

	return s, nil
}

// SetMaxTime sets the per-solve time budget.
func (s *Solver) SetMaxTime(d time.Duration) { s.maxTime = d }

// SetEps sets the per-component pose convergence epsilon.
func (s *Solver) SetEps(eps float64) { s.eps = eps }

// SetSolveType sets the race-termination and ranking policy.
func (s *Solver) SetSolveType(t SolveType) { s.solveType = t }

// Close stops and joins the worker pair. Safe to call more than once; any
// worker panic has already been captured and logged.
func (s *Solver) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.tasks)
	})
	s.workers.Wait()
	return nil
}

// solveAttempt carries the per-call state shared by the two workers.
type solveAttempt struct {
	s        *Solver
	seed     []float64
	goal     spatial.Pose
	tol      [6]float64
	deadline time.Time
	pool     *solutionPool

	pinvAbort  *atomic.Bool
	nloptAbort *atomic.Bool
}

// Solve attempts to place the chain's end-effector within tol of goal,
// starting from seed. On success it returns the number of distinct solutions
// pooled (>= 1) and the winner under the configured solve type. On failure
// the returned configuration is the seed: status SolveFailed with
// ErrNoSolution when the deadline expired with an empty pool, status -1 with
// ErrWrongDimension when the seed length is wrong (no workers are started).
func (s *Solver) Solve(ctx context.Context, seed []float64, goal spatial.Pose, tol spatial.Twist) (int, []float64, error) {
	seedCopy := append([]float64(nil), seed...)
	if len(seed) != s.chain.DoF() {
		return -1, seedCopy, errors.Wrapf(ErrWrongDimension, "got %d values for %d DoF", len(seed), s.chain.DoF())
	}
	if s.closed.Load() {
		return -1, seedCopy, ErrClosed
	}

	attempt := &solveAttempt{
		s:          s,
		seed:       seedCopy,
		goal:       goal,
		tol:        tol.Array(),
		deadline:   s.clk.Now().Add(s.maxTime),
		pool:       newSolutionPool(),
		pinvAbort:  atomic.NewBool(false),
		nloptAbort: atomic.NewBool(false),
	}

	pinv := &pinvIK{s: s}
	nl := &nloptIK{s: s}

	var running sync.WaitGroup
	running.Add(2)
	s.tasks <- func() {
		defer running.Done()
		attempt.runWorker(ctx, pinv, attempt.pinvAbort, attempt.nloptAbort)
	}
	s.tasks <- func() {
		defer running.Done()
		attempt.runWorker(ctx, nl, attempt.nloptAbort, attempt.pinvAbort)
	}
	running.Wait()

	solutions, scores := attempt.pool.snapshot()
	if len(solutions) == 0 {
		return SolveFailed, seedCopy, ErrNoSolution
	}

	descending := s.solveType == Manip1 || s.solveType == Manip2
	sort.SliceStable(scores, func(i, j int) bool {
		if descending {
			return scores[i].score > scores[j].score
		}
		return scores[i].score < scores[j].score
	})

	return len(solutions), solutions[scores[0].index], nil
}

// innerSolver is one strategy's single-attempt solve. Implementations must
// poll the abort flag and the deadline and return promptly when either
// fires. A false return is ordinary restart control flow, never an error.
type innerSolver interface {
	solve(ctx context.Context, seed []float64, goal spatial.Pose, tol [6]float64, deadline time.Time, abort *atomic.Bool) ([]float64, bool)
}

// runWorker is the restart loop shared by both strategies: inner-solve,
// normalize into the seed's neighborhood and into limits, pool the result,
// then resample the seed. On exit it aborts the peer, whether it stopped on
// the deadline or on a Speed early-out.
func (a *solveAttempt) runWorker(ctx context.Context, inner innerSolver, self, peer *atomic.Bool) {
	defer peer.Store(true)

	rng := rand.New(rand.NewSource(a.s.rngSeed.Add(1) * 1000))
	seed := append([]float64(nil), a.seed...)

	for {
		if !a.s.clk.Now().Before(a.deadline) || self.Load() || ctx.Err() != nil {
			return
		}

		q, ok := inner.solve(ctx, seed, a.goal, a.tol, a.deadline, self)
		if ok {
			switch a.s.solveType {
			case Manip1, Manip2:
				a.s.normalizeLimits(a.seed, q)
			default:
				a.s.normalizeSeed(a.seed, q)
			}
			if !a.pool.tryInsert(q, a.scorer()) {
				a.s.logger.Debugw("duplicate solution discarded", "q", q)
			}
		}

		if a.s.solveType == Speed && !a.pool.empty() {
			return
		}

		for j := range seed {
			if a.s.classes[j] == classContinuous {
				seed[j] = fRand(rng, a.seed[j]-2*math.Pi, a.seed[j]+2*math.Pi)
			} else {
				seed[j] = fRand(rng, a.s.lb[j], a.s.ub[j])
			}
		}
	}
}

// scorer returns the ranking function for the configured solve type. Manip
// scores are expensive (an SVD of the Jacobian) and are computed outside the
// pool lock.
func (a *solveAttempt) scorer() func([]float64) float64 {
	switch a.s.solveType {
	case Manip1:
		return func(q []float64) float64 { return a.s.manipPenalty(q) * a.s.manipValue1(q) }
	case Manip2:
		return func(q []float64) float64 { return a.s.manipPenalty(q) * a.s.manipValue2(q) }
	default:
		return func(q []float64) float64 { return a.s.jointErr(a.seed, q) }
	}
}

// fRand returns a uniform sample in [lo, hi], clamping infinite limits to a
// finite range first.
func fRand(rng *rand.Rand, lo, hi float64) float64 {
	if lo < -math.MaxFloat32 {
		lo = -999
	}
	if hi > math.MaxFloat32 {
		hi = 999
	}
	return lo + rng.Float64()*(hi-lo)
}
