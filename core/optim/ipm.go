package optim

import (
	"context"
	"fmt"
	"math"
)

// sparseLP is min c·x subject to A·x = b and l ≤ x ≤ u with A stored by
// column. Inequality rows carry a slack column.
type sparseLP struct {
	m, n   int
	colPtr []int
	rowIdx []int32
	val    []float64
	b, c   []float64
	l, u   []float64
	// rowTol converts a scaled row residual into one relative to 1+|rhs| of
	// the unscaled row.
	rowTol []float64
}

// solveInterior solves the reduced LP with the interior point method and
// maps the result back onto the model variables.
func (p *problem) solveInterior(ctx context.Context, c []float64, red *reduced, opts Options) ([]float64, error) {
	lp, nStruct := p.sparseForm(c, red)
	colScale := lp.equilibrate()
	y, err := lp.interiorPoint(ctx, opts)
	if err != nil {
		return nil, err
	}
	x := append([]float64(nil), red.x...)
	for k, j := range red.cols[:nStruct] {
		x[j] = math.Max(red.lb[j], math.Min(red.ub[j], y[k]*colScale[k]))
	}
	if err := p.verify(x, red.lb, red.ub, opts.FeasibilityTol); err != nil {
		return nil, err
	}
	return x, nil
}

// sparseForm builds the equality form of the reduced LP. The first nStruct
// columns are the variables in red.cols, the rest are slacks.
func (p *problem) sparseForm(c []float64, red *reduced) (*sparseLP, int) {
	nStruct := len(red.cols)
	at := make([]int, p.n)
	for j := range at {
		at[j] = -1
	}
	for k, j := range red.cols {
		at[j] = k
	}

	lp := &sparseLP{m: len(red.rows), b: make([]float64, len(red.rows))}
	count := make([]int, nStruct)
	nSlack := 0
	for _, r := range red.rows {
		for _, j := range p.rows[r].idx {
			if k := at[j]; k >= 0 {
				count[k]++
			}
		}
		if p.rows[r].rel != EQ {
			nSlack++
		}
	}
	lp.n = nStruct + nSlack
	lp.colPtr = make([]int, lp.n+1)
	for k := 0; k < nStruct; k++ {
		lp.colPtr[k+1] = lp.colPtr[k] + count[k]
	}
	for k := nStruct; k < lp.n; k++ {
		lp.colPtr[k+1] = lp.colPtr[k] + 1
	}
	nnz := lp.colPtr[lp.n]
	lp.rowIdx = make([]int32, nnz)
	lp.val = make([]float64, nnz)
	lp.c = make([]float64, lp.n)
	lp.l = make([]float64, lp.n)
	lp.u = make([]float64, lp.n)
	for k, j := range red.cols {
		lp.c[k], lp.l[k], lp.u[k] = c[j], red.lb[j], red.ub[j]
	}

	next := append([]int(nil), lp.colPtr[:lp.n]...)
	slack := nStruct
	for i, r := range red.rows {
		rw := p.rows[r]
		rhs := rw.rhs
		for t, j := range rw.idx {
			k := at[j]
			if k < 0 {
				rhs -= rw.val[t] * red.x[j]
				continue
			}
			lp.rowIdx[next[k]] = int32(i)
			lp.val[next[k]] = rw.val[t]
			next[k]++
		}
		lp.b[i] = rhs
		if rw.rel == EQ {
			continue
		}
		sign := 1.0
		if rw.rel == GE {
			sign = -1
		}
		lp.rowIdx[next[slack]] = int32(i)
		lp.val[next[slack]] = sign
		lp.l[slack], lp.u[slack] = 0, math.Inf(1)
		slack++
	}
	return lp, nStruct
}

// equilibrate scales rows and columns of A towards unit infinity norm and
// normalises the cost. It returns the column scale: x = scale·x̃.
func (lp *sparseLP) equilibrate() []float64 {
	R := make([]float64, lp.m)
	C := make([]float64, lp.n)
	for i := range R {
		R[i] = 1
	}
	for j := range C {
		C[j] = 1
	}
	rmax := make([]float64, lp.m)
	for it := 0; it < 10; it++ {
		for i := range rmax {
			rmax[i] = 0
		}
		for k, r := range lp.rowIdx {
			rmax[r] = math.Max(rmax[r], math.Abs(lp.val[k]))
		}
		done := true
		for j := 0; j < lp.n; j++ {
			cmax := 0.0
			for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
				cmax = math.Max(cmax, math.Abs(lp.val[k]))
			}
			cs := 1.0
			if cmax > 0 {
				cs = 1 / math.Sqrt(cmax)
			}
			if math.Abs(1-cmax) > 1e-2 {
				done = false
			}
			for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
				r := lp.rowIdx[k]
				rs := 1.0
				if rmax[r] > 0 {
					rs = 1 / math.Sqrt(rmax[r])
				}
				lp.val[k] *= rs * cs
			}
			C[j] *= cs
		}
		for i, v := range rmax {
			if v > 0 {
				R[i] /= math.Sqrt(v)
			}
			if math.Abs(1-v) > 1e-2 {
				done = false
			}
		}
		if done {
			break
		}
	}
	lp.rowTol = make([]float64, lp.m)
	for i := range lp.b {
		lp.rowTol[i] = 1 / (R[i] * (1 + math.Abs(lp.b[i])))
		lp.b[i] *= R[i]
	}
	cmax := 0.0
	for j := range lp.c {
		lp.c[j] *= C[j]
		lp.l[j] /= C[j]
		lp.u[j] /= C[j]
		cmax = math.Max(cmax, math.Abs(lp.c[j]))
	}
	if cmax > 0 {
		for j := range lp.c {
			lp.c[j] /= cmax
		}
	}
	return C
}

// ipmState holds the iterate and the work vectors of one interior point run.
type ipmState struct {
	lp         *sparseLP
	chol       *normalCholesky
	hasL, hasU []bool
	x, zl, zu  []float64
	y          []float64
	xl, xu     []float64
	rp, rd     []float64
	d, h       []float64
	dx, dy     []float64
	dzl, dzu   []float64
	rl, ru     []float64
}

const (
	ipmStep     = 0.995
	ipmPrimReg  = 1e-10
	ipmDualReg  = 1e-10
	ipmDiverged = 1e14
)

// interiorPoint runs Mehrotra's predictor-corrector method on the bounded
// equality form. ctx is checked once per iteration.
//
//nolint:gocyclo
func (lp *sparseLP) interiorPoint(ctx context.Context, opts Options) ([]float64, error) {
	m, n := lp.m, lp.n
	st := &ipmState{lp: lp, hasL: make([]bool, n), hasU: make([]bool, n)}
	for _, v := range []*[]float64{&st.x, &st.zl, &st.zu, &st.xl, &st.xu, &st.rd, &st.d, &st.h, &st.dx, &st.dzl, &st.dzu, &st.rl, &st.ru} {
		*v = make([]float64, n)
	}
	for _, v := range []*[]float64{&st.y, &st.rp, &st.dy} {
		*v = make([]float64, m)
	}
	nPairs := 0
	for j := 0; j < n; j++ {
		l, u := lp.l[j], lp.u[j]
		st.hasL[j], st.hasU[j] = !math.IsInf(l, -1), !math.IsInf(u, 1)
		switch {
		case st.hasL[j] && st.hasU[j]:
			st.x[j] = (l + u) / 2
		case st.hasL[j]:
			st.x[j] = l + 1
		case st.hasU[j]:
			st.x[j] = u - 1
		}
		if st.hasL[j] {
			st.zl[j] = 1
			nPairs++
		}
		if st.hasU[j] {
			st.zu[j] = 1
			nPairs++
		}
	}
	st.chol = newNormalCholesky(lp)

	cnorm := 1 + normInf(lp.c)
	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mu := st.residuals()
		if nPairs > 0 {
			mu /= float64(nPairs)
		}
		pobj, dobj := st.objectives()
		pinf := st.primalInfeasibility()
		dinf := normInf(st.rd) / cnorm
		gap := math.Abs(pobj-dobj) / (1 + math.Abs(pobj))
		if pinf <= opts.IPMTolerance && dinf <= opts.IPMTolerance && gap <= opts.IPMTolerance {
			return st.x, nil
		}
		switch {
		case normInf(st.x) > ipmDiverged:
			return nil, ErrUnbounded
		case normInf(st.y) > ipmDiverged || normInf(st.zl) > ipmDiverged || normInf(st.zu) > ipmDiverged:
			return nil, ErrInfeasible
		case iter >= opts.IPMMaxIter:
			return nil, fmt.Errorf("%w: interior point stopped after %d iterations (primal %.1e, dual %.1e, gap %.1e)",
				ErrNumerical, iter, pinf, dinf, gap)
		}

		for j := 0; j < n; j++ {
			theta := ipmPrimReg
			if st.hasL[j] {
				theta += st.zl[j] / st.xl[j]
			}
			if st.hasU[j] {
				theta += st.zu[j] / st.xu[j]
			}
			st.d[j] = 1 / theta
		}
		if err := st.chol.factor(st.d, ipmDualReg); err != nil {
			return nil, err
		}

		// Predictor: pure Newton step towards complementarity.
		for j := 0; j < n; j++ {
			st.rl[j], st.ru[j] = 0, 0
			if st.hasL[j] {
				st.rl[j] = -st.xl[j] * st.zl[j]
			}
			if st.hasU[j] {
				st.ru[j] = -st.xu[j] * st.zu[j]
			}
		}
		st.direction()
		ap, ad := st.maxStep()
		sigma := 0.0
		if nPairs > 0 && mu > 0 {
			muAff := 0.0
			for j := 0; j < n; j++ {
				if st.hasL[j] {
					muAff += (st.xl[j] + ap*st.dx[j]) * (st.zl[j] + ad*st.dzl[j])
				}
				if st.hasU[j] {
					muAff += (st.xu[j] - ap*st.dx[j]) * (st.zu[j] + ad*st.dzu[j])
				}
			}
			muAff /= float64(nPairs)
			sigma = math.Pow(math.Max(0, muAff)/mu, 3)
		}

		// Corrector: centring plus the second order term of the predictor.
		for j := 0; j < n; j++ {
			if st.hasL[j] {
				st.rl[j] = sigma*mu - st.xl[j]*st.zl[j] - st.dx[j]*st.dzl[j]
			}
			if st.hasU[j] {
				st.ru[j] = sigma*mu - st.xu[j]*st.zu[j] + st.dx[j]*st.dzu[j]
			}
		}
		st.direction()
		ap, ad = st.maxStep()
		ap, ad = math.Min(1, ipmStep*ap), math.Min(1, ipmStep*ad)
		for j := 0; j < n; j++ {
			st.x[j] += ap * st.dx[j]
			st.zl[j] += ad * st.dzl[j]
			st.zu[j] += ad * st.dzu[j]
		}
		for i := 0; i < m; i++ {
			st.y[i] += ad * st.dy[i]
		}
	}
}

// residuals refreshes the bound distances, rp = b - A·x and
// rd = c - Aᵀ·y - zl + zu. It returns the complementarity sum.
func (st *ipmState) residuals() float64 {
	lp := st.lp
	copy(st.rp, lp.b)
	comp := 0.0
	for j := 0; j < lp.n; j++ {
		aty := 0.0
		for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
			r := lp.rowIdx[k]
			st.rp[r] -= lp.val[k] * st.x[j]
			aty += lp.val[k] * st.y[r]
		}
		st.rd[j] = lp.c[j] - aty - st.zl[j] + st.zu[j]
		if st.hasL[j] {
			st.xl[j] = st.x[j] - lp.l[j]
			comp += st.xl[j] * st.zl[j]
		}
		if st.hasU[j] {
			st.xu[j] = lp.u[j] - st.x[j]
			comp += st.xu[j] * st.zu[j]
		}
	}
	return comp
}

func (st *ipmState) primalInfeasibility() float64 {
	worst := 0.0
	for i, r := range st.rp {
		if st.lp.rowTol != nil {
			r *= st.lp.rowTol[i]
		} else {
			r /= 1 + math.Abs(st.lp.b[i])
		}
		worst = math.Max(worst, math.Abs(r))
	}
	return worst
}

func (st *ipmState) objectives() (pobj, dobj float64) {
	lp := st.lp
	for j := 0; j < lp.n; j++ {
		pobj += lp.c[j] * st.x[j]
		if st.hasL[j] {
			dobj += lp.l[j] * st.zl[j]
		}
		if st.hasU[j] {
			dobj -= lp.u[j] * st.zu[j]
		}
	}
	for i, v := range lp.b {
		dobj += v * st.y[i]
	}
	return pobj, dobj
}

// direction solves the Newton system for the complementarity targets in rl
// and ru using the factor of A·D·Aᵀ.
func (st *ipmState) direction() {
	lp := st.lp
	for j := 0; j < lp.n; j++ {
		h := st.rd[j]
		if st.hasL[j] {
			h -= st.rl[j] / st.xl[j]
		}
		if st.hasU[j] {
			h += st.ru[j] / st.xu[j]
		}
		st.h[j] = h
	}
	copy(st.dy, st.rp)
	for j := 0; j < lp.n; j++ {
		w := st.d[j] * st.h[j]
		for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
			st.dy[lp.rowIdx[k]] += lp.val[k] * w
		}
	}
	st.chol.solve(st.dy)
	for j := 0; j < lp.n; j++ {
		aty := 0.0
		for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
			aty += lp.val[k] * st.dy[lp.rowIdx[k]]
		}
		dx := st.d[j] * (aty - st.h[j])
		st.dx[j] = dx
		st.dzl[j], st.dzu[j] = 0, 0
		if st.hasL[j] {
			st.dzl[j] = (st.rl[j] - st.zl[j]*dx) / st.xl[j]
		}
		if st.hasU[j] {
			st.dzu[j] = (st.ru[j] + st.zu[j]*dx) / st.xu[j]
		}
	}
}

// maxStep returns the longest primal and dual steps that keep the bound
// distances and the bound multipliers non-negative.
func (st *ipmState) maxStep() (ap, ad float64) {
	ap, ad = math.Inf(1), math.Inf(1)
	for j := range st.dx {
		dx := st.dx[j]
		if st.hasL[j] {
			if dx < 0 {
				ap = math.Min(ap, -st.xl[j]/dx)
			}
			if st.dzl[j] < 0 {
				ad = math.Min(ad, -st.zl[j]/st.dzl[j])
			}
		}
		if st.hasU[j] {
			if dx > 0 {
				ap = math.Min(ap, st.xu[j]/dx)
			}
			if st.dzu[j] < 0 {
				ad = math.Min(ad, -st.zu[j]/st.dzu[j])
			}
		}
	}
	return math.Min(1, ap), math.Min(1, ad)
}

func normInf(v []float64) float64 {
	n := 0.0
	for _, x := range v {
		n = math.Max(n, math.Abs(x))
	}
	return n
}
