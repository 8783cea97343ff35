package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInfeasible is returned when no assignment satisfies the constraints.
	ErrInfeasible = errors.New("model infeasible")
	// ErrUnbounded is returned when an objective can improve without limit.
	ErrUnbounded = errors.New("model unbounded")
	// ErrNodeLimit is returned when branch and bound stops before proving optimality.
	ErrNodeLimit = errors.New("branch and bound node limit reached")
	// ErrNumerical is returned when an LP backend fails for numerical reasons.
	ErrNumerical = errors.New("numerical failure in lp solver")
	// ErrInvalidModel is returned for malformed models.
	ErrInvalidModel = errors.New("invalid model")
)

// Solver solves a Model to optimality or reports why it could not.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// Solution holds optimal variable values.
type Solution struct {
	X []float64
	// Objectives holds the value of each objective stage in its own sense.
	Objectives []float64
	Nodes      int
	LPs        int
}

// Value returns the value of v.
func (s *Solution) Value(v Var) float64 { return s.X[v] }

// Eval evaluates e at the solution.
func (s *Solution) Eval(e Expr) float64 { return evalExpr(e, s.X) }

func evalExpr(e Expr, x []float64) float64 {
	v := e.Constant
	for _, t := range e.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// LP backends.
const (
	// BackendAuto uses the dense simplex for small models and the interior
	// point method otherwise.
	BackendAuto = "auto"
	// BackendDense always uses the gonum dense simplex.
	BackendDense = "dense"
	// BackendSparse always uses the sparse interior point method.
	BackendSparse = "sparse"
)

// Options tunes the LP backends and branch and bound.
type Options struct {
	// Backend is one of auto, dense or sparse.
	Backend string `json:"backend"`
	// DenseLimit is the largest variables×constraints product that auto
	// hands to the dense simplex.
	DenseLimit int `json:"dense_limit"`
	// Tolerance is the reduced cost tolerance passed to the simplex.
	Tolerance float64 `json:"tolerance"`
	// FeasibilityTol is the accepted constraint violation relative to 1+|rhs|.
	FeasibilityTol float64 `json:"feasibility_tol"`
	// IntegralityTol is the distance to 0 or 1 accepted for binaries.
	IntegralityTol float64 `json:"integrality_tol"`
	// ObjectiveRelTol relaxes each lexicographic stage when the next is solved.
	ObjectiveRelTol float64 `json:"objective_rel_tol"`
	// MaxNodes bounds branch and bound per objective stage.
	MaxNodes int `json:"max_nodes"`
	// MIPGap is the relative gap at which a dense branch and bound node is
	// pruned. LargeMIPGap applies to models on the interior point backend.
	MIPGap      float64 `json:"mip_gap"`
	LargeMIPGap float64 `json:"large_mip_gap"`
	// IPMTolerance bounds the relative residuals and duality gap at which the
	// interior point method stops. IPMMaxIter is its iteration limit.
	IPMTolerance float64 `json:"ipm_tolerance"`
	IPMMaxIter   int     `json:"ipm_max_iter"`
}

// SetDefaults fills unset options.
func (o *Options) SetDefaults() {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-9
	}
	if o.FeasibilityTol <= 0 {
		o.FeasibilityTol = 1e-6
	}
	if o.IntegralityTol <= 0 {
		o.IntegralityTol = 1e-6
	}
	if o.ObjectiveRelTol <= 0 {
		o.ObjectiveRelTol = 1e-7
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = 5000
	}
	if o.Backend == "" {
		o.Backend = BackendAuto
	}
	if o.DenseLimit <= 0 {
		o.DenseLimit = 40000
	}
	if o.MIPGap <= 0 {
		o.MIPGap = 1e-9
	}
	if o.LargeMIPGap <= 0 {
		o.LargeMIPGap = 1e-4
	}
	if o.IPMTolerance <= 0 {
		o.IPMTolerance = 1e-8
	}
	if o.IPMMaxIter <= 0 {
		o.IPMMaxIter = 200
	}
}

// Validate checks the backend name.
func (o Options) Validate() error {
	switch o.Backend {
	case "", BackendAuto, BackendDense, BackendSparse:
		return nil
	}
	return fmt.Errorf("%w: unknown lp backend %q", ErrInvalidModel, o.Backend)
}

// sparse reports whether m goes to the interior point backend.
func (o Options) sparse(m *Model) bool {
	switch o.Backend {
	case BackendDense:
		return false
	case BackendSparse:
		return true
	}
	return m.NumVars()*m.NumConstraints() > o.DenseLimit
}

// MIPSolver solves models by branch and bound over the binary variables.
// LP relaxations of small models go to the gonum dense simplex, larger ones
// to a sparse interior point method.
type MIPSolver struct {
	opts Options
}

// NewMIPSolver returns a solver with defaults applied to opts.
func NewMIPSolver(opts Options) *MIPSolver {
	opts.SetDefaults()
	return &MIPSolver{opts: opts}
}

// Solve optimises every objective of m in order. It runs on the calling
// goroutine and returns ctx.Err() once the context is done: between LPs on
// the dense backend, within an iteration on the interior point backend.
func (s *MIPSolver) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.opts.Validate(); err != nil {
		return nil, err
	}
	p := newProblem(m)
	p.sparse = s.opts.sparse(m)
	objs := m.objectives
	if len(objs) == 0 {
		objs = []Objective{{Name: "feasibility"}}
	}

	sol := &Solution{}
	var x []float64
	for k, obj := range objs {
		c := p.costVector(obj)
		xs, val, st, err := s.branchAndBound(ctx, p, c)
		sol.Nodes += st.nodes
		sol.LPs += st.lps
		if err != nil {
			return nil, fmt.Errorf("objective %q: %w", obj.Name, err)
		}
		x = xs
		if k < len(objs)-1 {
			// Keep this stage within tolerance of its optimum.
			p.addDenseRow(c, LE, val+s.opts.ObjectiveRelTol*(1+math.Abs(val)))
		}
	}
	sol.X = x
	sol.Objectives = make([]float64, len(m.objectives))
	for i, o := range m.objectives {
		sol.Objectives[i] = evalExpr(o.Expr, x)
	}
	return sol, nil
}
