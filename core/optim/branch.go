package optim

import (
	"context"
	"errors"
	"math"
)

type bbStats struct {
	nodes int
	lps   int
}

type bbNode struct {
	lb, ub []float64
	// bound is the relaxed objective of the parent.
	bound float64
}

// branchAndBound minimises c·x with binaries restricted to {0,1}. Nodes are
// explored depth first; the branch closer to the relaxed value goes first.
func (s *MIPSolver) branchAndBound(ctx context.Context, p *problem, c []float64) ([]float64, float64, bbStats, error) {
	var st bbStats
	var bins []int
	for j, b := range p.binary {
		if b && !isFixed(p.lb[j], p.ub[j]) {
			bins = append(bins, j)
		}
	}

	gap := s.opts.MIPGap
	if p.sparse {
		gap = s.opts.LargeMIPGap
	}
	root := bbNode{lb: append([]float64(nil), p.lb...), ub: append([]float64(nil), p.ub...), bound: math.Inf(-1)}
	stack := []bbNode{root}
	best := math.Inf(1)
	var bestX []float64
	pruned := func(v float64) bool { return v >= best-gap*(1+math.Abs(best)) }
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, st, err
		}
		if st.nodes >= s.opts.MaxNodes {
			return nil, 0, st, ErrNodeLimit
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pruned(nd.bound) {
			continue
		}
		st.nodes++

		x, val, err := p.solveLP(ctx, c, nd.lb, nd.ub, s.opts)
		st.lps++
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if err != nil {
			return nil, 0, st, err
		}
		if pruned(val) {
			continue
		}

		j := s.mostFractional(x, bins)
		if j < 0 {
			best, bestX = val, x
			continue
		}
		if bestX == nil {
			if rx, rv, ok := s.roundAndFix(ctx, p, c, x, nd, bins); ok {
				st.lps++
				best, bestX = rv, rx
			}
		}

		down := bbNode{lb: nd.lb, ub: append([]float64(nil), nd.ub...), bound: val}
		down.ub[j] = 0
		up := bbNode{lb: append([]float64(nil), nd.lb...), ub: nd.ub, bound: val}
		up.lb[j] = 1
		if x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}
	if bestX == nil {
		return nil, 0, st, ErrInfeasible
	}
	for _, j := range bins {
		bestX[j] = math.Round(bestX[j])
	}
	return bestX, best, st, nil
}

func (s *MIPSolver) mostFractional(x []float64, bins []int) int {
	best, bestDist := -1, s.opts.IntegralityTol
	for _, j := range bins {
		d := math.Abs(x[j] - math.Round(x[j]))
		if d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// roundAndFix fixes every binary at its rounded relaxed value and re-solves
// the continuous part to find a first incumbent.
func (s *MIPSolver) roundAndFix(ctx context.Context, p *problem, c, x []float64, nd bbNode, bins []int) ([]float64, float64, bool) {
	lb := append([]float64(nil), nd.lb...)
	ub := append([]float64(nil), nd.ub...)
	for _, j := range bins {
		v := math.Round(x[j])
		lb[j], ub[j] = v, v
	}
	rx, rv, err := p.solveLP(ctx, c, lb, ub, s.opts)
	if err != nil {
		return nil, 0, false
	}
	return rx, rv, true
}
