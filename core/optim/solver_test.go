package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expr(terms ...Term) Expr { return Expr{Terms: terms} }

func TestSimplexLP(t *testing.T) {
	m := NewModel("lp")
	x := m.AddVar("x", 0, math.Inf(1))
	y := m.AddVar("y", 0, math.Inf(1))
	m.AddConstraint("c1", expr(Term{x, 1}, Term{y, 2}), LE, 4)
	m.AddConstraint("c2", expr(Term{x, 3}, Term{y, 1}), LE, 6)
	m.AddObjective("sum", expr(Term{x, 1}, Term{y, 1}), Maximize)

	sol, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 1.6, sol.Value(x), 1e-6)
	assert.InDelta(t, 1.2, sol.Value(y), 1e-6)
	assert.InDelta(t, 2.8, sol.Objectives[0], 1e-6)
}

func TestSimplexInfeasible(t *testing.T) {
	cases := []struct {
		name  string
		build func(m *Model)
	}{
		{"singleton", func(m *Model) {
			x := m.AddVar("x", 0, 10)
			m.AddConstraint("lo", expr(Term{x, 1}), GE, 2)
			m.AddConstraint("hi", expr(Term{x, 1}), LE, 1)
		}},
		{"rows", func(m *Model) {
			x := m.AddVar("x", 0, math.Inf(1))
			y := m.AddVar("y", 0, math.Inf(1))
			m.AddConstraint("le", expr(Term{x, 1}, Term{y, 1}), LE, 1)
			m.AddConstraint("ge", expr(Term{x, 1}, Term{y, 1}), GE, 3)
			m.AddObjective("x", expr(Term{x, 1}), Maximize)
		}},
		{"negative budget", func(m *Model) {
			x := m.AddVar("x", 0, 5)
			y := m.AddVar("y", 0, 5)
			m.AddConstraint("cap", expr(Term{x, 1}, Term{y, 1}), LE, -1)
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := NewModel(c.name)
			c.build(m)
			_, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
			if !errors.Is(err, ErrInfeasible) {
				t.Fatalf("expected ErrInfeasible, got %v", err)
			}
		})
	}
}

func TestSimplexUnbounded(t *testing.T) {
	m := NewModel("unbounded")
	x := m.AddVar("x", 0, math.Inf(1))
	y := m.AddVar("y", 0, math.Inf(1))
	m.AddConstraint("c", expr(Term{x, 1}, Term{y, -1}), LE, 1)
	m.AddObjective("x", expr(Term{x, 1}), Maximize)
	_, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestSimplexFreeVariable(t *testing.T) {
	m := NewModel("free")
	x := m.AddVar("x", math.Inf(-1), math.Inf(1))
	y := m.AddVar("y", 0, 2)
	m.AddConstraint("c", expr(Term{x, 1}, Term{y, 1}), GE, -5)
	m.AddObjective("x", expr(Term{x, 1}), Minimize)
	sol, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, -7, sol.Value(x), 1e-6)
	assert.InDelta(t, 2, sol.Value(y), 1e-6)
}

func TestSimplexUpperBoundOnlyVariable(t *testing.T) {
	m := NewModel("upper")
	x := m.AddVar("x", math.Inf(-1), 3)
	y := m.AddVar("y", 0, 5)
	m.AddConstraint("c", expr(Term{x, 1}, Term{y, 1}), GE, 4)
	m.AddObjective("y", expr(Term{y, 1}), Minimize)
	sol, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 3, sol.Value(x), 1e-6)
	assert.InDelta(t, 1, sol.Value(y), 1e-6)
}

func TestIsFixed(t *testing.T) {
	assert.True(t, isFixed(2, 2))
	assert.False(t, isFixed(0, 1))
	assert.False(t, isFixed(math.Inf(-1), math.Inf(1)))
	assert.False(t, isFixed(math.Inf(-1), 3))
	assert.False(t, isFixed(0, math.Inf(1)))
}

func TestBranchAndBoundKnapsack(t *testing.T) {
	m := NewModel("knapsack")
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	c := m.AddBinary("c")
	m.AddConstraint("weight", expr(Term{a, 2}, Term{b, 3}, Term{c, 1}), LE, 4)
	m.AddObjective("value", expr(Term{a, 5}, Term{b, 4}, Term{c, 3}), Maximize)

	sol, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sol.Value(a))
	assert.Equal(t, 0.0, sol.Value(b))
	assert.Equal(t, 1.0, sol.Value(c))
	assert.InDelta(t, 8, sol.Objectives[0], 1e-6)
	assert.Greater(t, sol.Nodes, 1)
}

func TestLexicographicObjectives(t *testing.T) {
	m := NewModel("lex")
	x := m.AddVar("x", 0, math.Inf(1))
	y := m.AddVar("y", 0, 7)
	m.AddConstraint("cap", expr(Term{x, 1}, Term{y, 1}), LE, 10)
	m.AddObjective("energy", expr(Term{x, 1}, Term{y, 1}), Maximize)
	m.AddObjective("prefer y", expr(Term{x, 1}), Minimize)

	sol, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 10, sol.Objectives[0], 1e-4)
	assert.InDelta(t, 3, sol.Value(x), 1e-4)
	assert.InDelta(t, 7, sol.Value(y), 1e-6)
}

func TestFixedVariablesArePresolved(t *testing.T) {
	m := NewModel("fixed")
	x := m.AddVar("x", 0, 10)
	y := m.AddVar("y", 0, 10)
	m.Fix(x, 4)
	m.AddConstraint("link", expr(Term{x, 1}, Term{y, 1}), LE, 6)
	m.AddObjective("y", expr(Term{y, 1}), Maximize)
	sol, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 4.0, sol.Value(x))
	assert.InDelta(t, 2, sol.Value(y), 1e-9)
}

func TestSolveHonoursCancelledContext(t *testing.T) {
	m := NewModel("cancel")
	x := m.AddBinary("x")
	y := m.AddBinary("y")
	m.AddConstraint("c", expr(Term{x, 1}, Term{y, 1}), LE, 1.5)
	m.AddObjective("obj", expr(Term{x, 1}, Term{y, 1}), Maximize)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMIPSolver(Options{}).Solve(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateRejectsUnknownVariable(t *testing.T) {
	m := NewModel("bad")
	m.AddVar("x", 0, 1)
	m.AddConstraint("c", expr(Term{Var(3), 1}), LE, 1)
	_, err := NewMIPSolver(Options{}).Solve(context.Background(), m)
	assert.ErrorIs(t, err, ErrInvalidModel)
}
