package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

type row struct {
	name string
	idx  []int
	val  []float64
	rel  Rel
	rhs  float64
}

// problem is the solver-side copy of a model with merged terms.
type problem struct {
	n      int
	lb, ub []float64
	binary []bool
	rows   []row
	// sparse routes LP relaxations to the interior point backend.
	sparse bool
}

func newProblem(m *Model) *problem {
	p := &problem{
		n:      len(m.vars),
		lb:     make([]float64, len(m.vars)),
		ub:     make([]float64, len(m.vars)),
		binary: make([]bool, len(m.vars)),
	}
	for i, v := range m.vars {
		p.lb[i], p.ub[i], p.binary[i] = v.lb, v.ub, v.binary
	}
	for _, c := range m.constraints {
		idx, val := mergeTerms(c.Expr.Terms)
		p.rows = append(p.rows, row{name: c.Name, idx: idx, val: val, rel: c.Rel, rhs: c.RHS - c.Expr.Constant})
	}
	return p
}

// mergeTerms sums duplicate variables and drops zero coefficients.
func mergeTerms(terms []Term) ([]int, []float64) {
	acc := make(map[int]float64, len(terms))
	for _, t := range terms {
		acc[int(t.Var)] += t.Coef
	}
	idx := make([]int, 0, len(acc))
	for j, v := range acc {
		if v != 0 {
			idx = append(idx, j)
		}
	}
	sort.Ints(idx)
	val := make([]float64, len(idx))
	for k, j := range idx {
		val[k] = acc[j]
	}
	return idx, val
}

// costVector returns the minimisation cost of an objective.
func (p *problem) costVector(o Objective) []float64 {
	c := make([]float64, p.n)
	sign := 1.0
	if o.Sense == Maximize {
		sign = -1
	}
	for _, t := range o.Expr.Terms {
		c[t.Var] += sign * t.Coef
	}
	return c
}

func (p *problem) addDenseRow(c []float64, rel Rel, rhs float64) {
	var r row
	r.name = "objective stage"
	for j, v := range c {
		if v != 0 {
			r.idx = append(r.idx, j)
			r.val = append(r.val, v)
		}
	}
	r.rel, r.rhs = rel, rhs
	p.rows = append(p.rows, r)
}

func isFixed(lb, ub float64) bool {
	if math.IsInf(lb, 0) || math.IsInf(ub, 0) {
		return false
	}
	return ub-lb <= 1e-12*(1+math.Abs(lb))
}

// presolve turns singleton rows into bounds and checks rows whose variables
// are all fixed. lb and ub are tightened in place.
func (p *problem) presolve(lb, ub []float64, feasTol, intTol float64) ([]bool, error) {
	active := make([]bool, len(p.rows))
	for i := range active {
		active[i] = true
	}
	for changed := true; changed; {
		changed = false
		for r := range p.rows {
			if !active[r] {
				continue
			}
			rw := &p.rows[r]
			act, single, count := 0.0, -1, 0
			for k, j := range rw.idx {
				if isFixed(lb[j], ub[j]) {
					act += rw.val[k] * lb[j]
					continue
				}
				count++
				single = k
			}
			rhs := rw.rhs - act
			tol := feasTol * (1 + math.Abs(rw.rhs))
			switch count {
			case 0:
				if violation(0, rw.rel, rhs) > tol {
					return nil, fmt.Errorf("%w: constraint %q", ErrInfeasible, rw.name)
				}
				active[r] = false
			case 1:
				j, a := rw.idx[single], rw.val[single]
				v := rhs / a
				lo, hi := math.Inf(-1), math.Inf(1)
				switch {
				case rw.rel == EQ:
					lo, hi = v, v
				case (rw.rel == LE) == (a > 0):
					hi = v
				default:
					lo = v
				}
				if p.binary[j] {
					lo, hi = math.Ceil(lo-intTol), math.Floor(hi+intTol)
				}
				lb[j] = math.Max(lb[j], lo)
				ub[j] = math.Min(ub[j], hi)
				if lb[j] > ub[j] {
					if lb[j]-ub[j] > tol {
						return nil, fmt.Errorf("%w: bounds of %q", ErrInfeasible, rw.name)
					}
					lb[j] = ub[j]
				}
				active[r] = false
				changed = true
			}
		}
	}
	return active, nil
}

func violation(act float64, rel Rel, rhs float64) float64 {
	switch rel {
	case LE:
		return math.Max(0, act-rhs)
	case GE:
		return math.Max(0, rhs-act)
	default:
		return math.Abs(act - rhs)
	}
}

// column kinds of the standard form.
const (
	colShift = iota // x = lb + y
	colFlip         // x = ub - y
	colSplit        // x = y+ - y-
)

type column struct {
	v    int
	kind int
	at   int
}

// solveLP minimises c·x over the rows of p with the given bounds. It returns
// the primal solution and the objective value c·x. Large problems go to the
// interior point backend, which observes ctx between iterations.
func (p *problem) solveLP(ctx context.Context, c, lb0, ub0 []float64, opts Options) ([]float64, float64, error) {
	red, err := p.reduce(c, lb0, ub0, opts)
	if err != nil {
		return nil, 0, err
	}
	var x []float64
	switch {
	case len(red.cols) == 0:
		x = red.x
	case p.sparse:
		x, err = p.solveInterior(ctx, c, red, opts)
	default:
		x, err = p.solveDense(c, red, opts, false)
		if errors.Is(err, ErrNumerical) {
			// Degenerate vertices can stall the dense simplex; a tiny relaxation
			// of the inequality rows usually breaks the tie.
			x, err = p.solveDense(c, red, opts, true)
		}
	}
	if err != nil {
		return nil, 0, err
	}
	obj := 0.0
	for j, v := range x {
		obj += c[j] * v
	}
	return x, obj, nil
}

// reduced is what is left of an LP after presolve. x holds the values of
// variables outside the LP; cols lists the variables still in it.
type reduced struct {
	x      []float64
	lb, ub []float64
	rows   []int
	cols   []int
}

func (p *problem) reduce(c, lb0, ub0 []float64, opts Options) (*reduced, error) {
	lb := append([]float64(nil), lb0...)
	ub := append([]float64(nil), ub0...)
	for j := range lb {
		if lb[j] > ub[j]+opts.FeasibilityTol {
			return nil, fmt.Errorf("%w: empty bounds on variable %d", ErrInfeasible, j)
		}
	}
	active, err := p.presolve(lb, ub, opts.FeasibilityTol, opts.IntegralityTol)
	if err != nil {
		return nil, err
	}

	red := &reduced{x: make([]float64, p.n), lb: lb, ub: ub}
	inRow := make([]bool, p.n)
	for r, ok := range active {
		if !ok {
			continue
		}
		red.rows = append(red.rows, r)
		for _, j := range p.rows[r].idx {
			if !isFixed(lb[j], ub[j]) {
				inRow[j] = true
			}
		}
	}

	// Variables outside every remaining row sit on their cheapest bound.
	for j := 0; j < p.n; j++ {
		switch {
		case isFixed(lb[j], ub[j]):
			red.x[j] = lb[j]
		case !inRow[j]:
			v, err := cheapestBound(c[j], lb[j], ub[j])
			if err != nil {
				return nil, err
			}
			red.x[j] = v
		default:
			red.cols = append(red.cols, j)
		}
	}
	return red, nil
}

//nolint:gocyclo
func (p *problem) solveDense(c []float64, red *reduced, opts Options, perturb bool) ([]float64, error) {
	lb, ub := red.lb, red.ub
	x := append([]float64(nil), red.x...)

	var cols []column
	nCols, ubRows := 0, 0
	for _, j := range red.cols {
		col := column{v: j, at: nCols}
		switch {
		case !math.IsInf(lb[j], -1):
			col.kind = colShift
			nCols++
			if !math.IsInf(ub[j], 1) {
				ubRows++
			}
		case !math.IsInf(ub[j], 1):
			col.kind = colFlip
			nCols++
		default:
			col.kind = colSplit
			nCols += 2
		}
		cols = append(cols, col)
	}

	nSlack := ubRows
	for _, r := range red.rows {
		if p.rows[r].rel != EQ {
			nSlack++
		}
	}
	m := len(red.rows) + ubRows
	n := nCols + nSlack
	if m > n {
		return nil, fmt.Errorf("%w: %d rows exceed %d columns", ErrNumerical, m, n)
	}

	colOf := make(map[int]column, len(cols))
	for _, col := range cols {
		colOf[col.v] = col
	}
	A := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	cs := make([]float64, n)
	for _, col := range cols {
		j := col.v
		switch col.kind {
		case colShift:
			cs[col.at] = c[j]
		case colFlip:
			cs[col.at] = -c[j]
		case colSplit:
			cs[col.at] = c[j]
			cs[col.at+1] = -c[j]
		}
	}

	slack := nCols
	for i, r := range red.rows {
		rw := p.rows[r]
		rhs := rw.rhs
		scale := 0.0
		for _, v := range rw.val {
			scale = math.Max(scale, math.Abs(v))
		}
		for k, j := range rw.idx {
			a := rw.val[k] / scale
			col, ok := colOf[j]
			if !ok {
				rhs -= rw.val[k] * x[j]
				continue
			}
			switch col.kind {
			case colShift:
				A.Set(i, col.at, a)
				rhs -= rw.val[k] * lb[j]
			case colFlip:
				A.Set(i, col.at, -a)
				rhs -= rw.val[k] * ub[j]
			case colSplit:
				A.Set(i, col.at, a)
				A.Set(i, col.at+1, -a)
			}
		}
		rhs /= scale
		if perturb {
			eps := 1e-9 * (1 + math.Abs(rhs)) * float64(1+i%7) / 7
			switch rw.rel {
			case LE:
				rhs += eps
			case GE:
				rhs -= eps
			}
		}
		b[i] = rhs
		switch rw.rel {
		case LE:
			A.Set(i, slack, 1)
			slack++
		case GE:
			A.Set(i, slack, -1)
			slack++
		}
	}
	i := len(red.rows)
	for _, col := range cols {
		j := col.v
		if col.kind != colShift || math.IsInf(ub[j], 1) {
			continue
		}
		A.Set(i, col.at, 1)
		A.Set(i, slack, 1)
		b[i] = ub[j] - lb[j]
		slack++
		i++
	}

	y, err := simplex(cs, A, b, opts.Tolerance)
	if err != nil {
		return nil, err
	}
	for _, col := range cols {
		j := col.v
		switch col.kind {
		case colShift:
			x[j] = lb[j] + y[col.at]
		case colFlip:
			x[j] = ub[j] - y[col.at]
		case colSplit:
			x[j] = y[col.at] - y[col.at+1]
		}
		x[j] = snap(x[j], lb[j], ub[j], opts.FeasibilityTol)
	}
	if err := p.verify(x, lb, ub, opts.FeasibilityTol); err != nil {
		return nil, err
	}
	return x, nil
}

func cheapestBound(c, lb, ub float64) (float64, error) {
	switch {
	case c > 0:
		if math.IsInf(lb, -1) {
			return 0, ErrUnbounded
		}
		return lb, nil
	case c < 0:
		if math.IsInf(ub, 1) {
			return 0, ErrUnbounded
		}
		return ub, nil
	case !math.IsInf(lb, -1):
		return lb, nil
	case !math.IsInf(ub, 1):
		return ub, nil
	}
	return 0, nil
}

func snap(v, lb, ub, tol float64) float64 {
	if v < lb && lb-v <= tol*(1+math.Abs(lb)) {
		return lb
	}
	if v > ub && v-ub <= tol*(1+math.Abs(ub)) {
		return ub
	}
	return v
}

func (p *problem) verify(x, lb, ub []float64, tol float64) error {
	for j, v := range x {
		if v < lb[j]-tol*(1+math.Abs(lb[j])) || v > ub[j]+tol*(1+math.Abs(ub[j])) {
			return fmt.Errorf("%w: variable %d = %g outside [%g, %g]", ErrNumerical, j, v, lb[j], ub[j])
		}
	}
	for _, rw := range p.rows {
		act := 0.0
		for k, j := range rw.idx {
			act += rw.val[k] * x[j]
		}
		if violation(act, rw.rel, rw.rhs) > tol*(1+math.Abs(rw.rhs)) {
			return fmt.Errorf("%w: constraint %q violated", ErrNumerical, rw.name)
		}
	}
	return nil
}

// simplex wraps lp.Simplex and maps its errors. The gonum routine panics on
// shape errors, which are reported as numerical failures.
func simplex(c []float64, A *mat.Dense, b []float64, tol float64) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("%w: %v", ErrNumerical, r)
		}
	}()
	_, x, err = lp.Simplex(c, A, b, tol, nil)
	switch {
	case err == nil:
		return x, nil
	case errors.Is(err, lp.ErrInfeasible):
		return nil, ErrInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return nil, ErrUnbounded
	default:
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}
}
