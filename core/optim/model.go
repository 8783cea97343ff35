// Package optim builds linear and mixed-integer models and solves them.
//
// A Model holds bounded continuous or binary variables, sparse linear
// constraints and an ordered list of objectives. Objectives are optimised
// lexicographically: every later objective is optimised while the earlier ones
// stay at their optimum.
package optim

import (
	"fmt"
	"math"
)

// Var references a model variable.
type Var int

// Rel is the relation of a constraint.
type Rel int

const (
	LE Rel = iota
	EQ
	GE
)

func (r Rel) String() string {
	switch r {
	case LE:
		return "<="
	case EQ:
		return "="
	case GE:
		return ">="
	default:
		return fmt.Sprintf("Rel(%d)", int(r))
	}
}

// Sense is the optimisation direction of an objective.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression Σ coef·var + Constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Add appends coef·v to the expression.
func (e *Expr) Add(v Var, coef float64) *Expr {
	if coef != 0 {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// AddConst adds a constant offset.
func (e *Expr) AddConst(c float64) *Expr {
	e.Constant += c
	return e
}

// Scale returns f·e.
func (e Expr) Scale(f float64) Expr {
	out := Expr{Terms: make([]Term, len(e.Terms)), Constant: e.Constant * f}
	for i, t := range e.Terms {
		out.Terms[i] = Term{Var: t.Var, Coef: t.Coef * f}
	}
	return out
}

// Plus returns e + o.
func (e Expr) Plus(o Expr) Expr {
	out := Expr{Terms: make([]Term, 0, len(e.Terms)+len(o.Terms)), Constant: e.Constant + o.Constant}
	out.Terms = append(out.Terms, e.Terms...)
	out.Terms = append(out.Terms, o.Terms...)
	return out
}

// Constraint is Expr (Rel) RHS. The expression constant is moved to the right
// hand side when the model is solved.
type Constraint struct {
	Name string
	Expr Expr
	Rel  Rel
	RHS  float64
}

// Objective is one stage of a lexicographic objective.
type Objective struct {
	Name  string
	Expr  Expr
	Sense Sense
}

type variable struct {
	name   string
	lb, ub float64
	binary bool
}

// Model is a linear or mixed-integer program.
type Model struct {
	Name        string
	vars        []variable
	constraints []Constraint
	objectives  []Objective
}

// NewModel returns an empty model.
func NewModel(name string) *Model { return &Model{Name: name} }

// AddVar adds a continuous variable with bounds lb ≤ x ≤ ub. Infinite bounds
// are allowed.
func (m *Model) AddVar(name string, lb, ub float64) Var {
	m.vars = append(m.vars, variable{name: name, lb: lb, ub: ub})
	return Var(len(m.vars) - 1)
}

// AddBinary adds a variable restricted to {0,1}.
func (m *Model) AddBinary(name string) Var {
	m.vars = append(m.vars, variable{name: name, lb: 0, ub: 1, binary: true})
	return Var(len(m.vars) - 1)
}

// SetBounds replaces the bounds of v.
func (m *Model) SetBounds(v Var, lb, ub float64) {
	m.vars[v].lb, m.vars[v].ub = lb, ub
}

// Fix pins v to val.
func (m *Model) Fix(v Var, val float64) { m.SetBounds(v, val, val) }

// Bounds returns the bounds of v.
func (m *Model) Bounds(v Var) (lb, ub float64) { return m.vars[v].lb, m.vars[v].ub }

// IsBinary reports whether v is integral.
func (m *Model) IsBinary(v Var) bool { return m.vars[v].binary }

// VarName returns the name given to v.
func (m *Model) VarName(v Var) string { return m.vars[v].name }

// AddConstraint appends expr (rel) rhs.
func (m *Model) AddConstraint(name string, expr Expr, rel Rel, rhs float64) {
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: expr, Rel: rel, RHS: rhs})
}

// AddObjective appends an objective stage.
func (m *Model) AddObjective(name string, expr Expr, sense Sense) {
	m.objectives = append(m.objectives, Objective{Name: name, Expr: expr, Sense: sense})
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// NumBinaries returns the number of binary variables that are not fixed.
func (m *Model) NumBinaries() int {
	n := 0
	for _, v := range m.vars {
		if v.binary && v.lb != v.ub {
			n++
		}
	}
	return n
}

// Objectives returns the objective stages in priority order.
func (m *Model) Objectives() []Objective { return m.objectives }

// Constraints returns the model constraints.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Validate checks variable references and bounds.
func (m *Model) Validate() error {
	n := Var(len(m.vars))
	for i, v := range m.vars {
		if math.IsNaN(v.lb) || math.IsNaN(v.ub) {
			return fmt.Errorf("%w: variable %s has NaN bound", ErrInvalidModel, v.name)
		}
		if v.lb > v.ub {
			return fmt.Errorf("%w: variable %d (%s) has lb %g > ub %g", ErrInfeasible, i, v.name, v.lb, v.ub)
		}
	}
	check := func(e Expr, what string) error {
		for _, t := range e.Terms {
			if t.Var < 0 || t.Var >= n {
				return fmt.Errorf("%w: %s references unknown variable %d", ErrInvalidModel, what, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%w: %s has non-finite coefficient", ErrInvalidModel, what)
			}
		}
		return nil
	}
	for _, c := range m.constraints {
		if err := check(c.Expr, "constraint "+c.Name); err != nil {
			return err
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("%w: constraint %s has non-finite rhs", ErrInvalidModel, c.Name)
		}
	}
	for _, o := range m.objectives {
		if err := check(o.Expr, "objective "+o.Name); err != nil {
			return err
		}
	}
	return nil
}
