package optim

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
)

// normalCholesky factors A·D·Aᵀ + δI for the fixed pattern of a sparse A.
// Rows of A are eliminated in minimum degree order. Rows with more than
// denseRow entries stay out of the ordering and are eliminated last, so one
// long row only adds a single dense row to the factor.
type normalCholesky struct {
	m    int
	perm []int // perm[k] is the row of A eliminated k-th

	// Strictly lower part of L by column, in elimination order.
	colPtr []int
	rowIdx []int32
	val    []float64
	diag   []float64

	// A by column with rows mapped to elimination positions, and for every
	// pair of rows sharing a column the index into val it adds to.
	aPtr    []int
	aPos    []int32
	aVal    []float64
	pairPtr []int
	slots   []int32

	work []float64
}

func denseRowLimit(m int) int {
	return max(1000, int(10*math.Sqrt(float64(m))))
}

func newNormalCholesky(lp *sparseLP) *normalCholesky {
	m, n := lp.m, lp.n
	nnz := make([]int, m)
	for _, r := range lp.rowIdx {
		nnz[r]++
	}
	limit := denseRowLimit(m)
	dense := make([]bool, m)
	for r, k := range nnz {
		dense[r] = k > limit
	}

	adj := make([][]int32, m)
	rows := make([]int32, 0, 16)
	for j := 0; j < n; j++ {
		rows = rows[:0]
		for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
			if r := lp.rowIdx[k]; !dense[r] {
				rows = append(rows, r)
			}
		}
		for a, r := range rows {
			for b, s := range rows {
				if a != b {
					adj[r] = append(adj[r], s)
				}
			}
		}
	}
	for r := range adj {
		adj[r] = sortUnique(adj[r])
	}

	order, pattern := minimumDegree(adj, dense)
	for r := 0; r < m; r++ {
		if dense[r] {
			order = append(order, r)
		}
	}
	pos := make([]int32, m)
	for k, r := range order {
		pos[r] = int32(k)
	}
	nDense := 0
	for _, d := range dense {
		if d {
			nDense++
		}
	}
	firstDense := m - nDense

	c := &normalCholesky{m: m, perm: order, colPtr: make([]int, m+1), diag: make([]float64, m), work: make([]float64, m)}
	for k, r := range order {
		start := len(c.rowIdx)
		if k < firstDense {
			for _, s := range pattern[r] {
				c.rowIdx = append(c.rowIdx, pos[s])
			}
			col := c.rowIdx[start:]
			sort.Slice(col, func(a, b int) bool { return col[a] < col[b] })
			for d := firstDense; d < m; d++ {
				c.rowIdx = append(c.rowIdx, int32(d))
			}
		} else {
			for d := k + 1; d < m; d++ {
				c.rowIdx = append(c.rowIdx, int32(d))
			}
		}
		c.colPtr[k+1] = len(c.rowIdx)
	}
	c.val = make([]float64, len(c.rowIdx))

	c.aPtr = make([]int, n+1)
	c.pairPtr = make([]int, n+1)
	c.aPos = make([]int32, 0, len(lp.rowIdx))
	c.aVal = make([]float64, 0, len(lp.val))
	type entry struct {
		pos int32
		val float64
	}
	var col []entry
	for j := 0; j < n; j++ {
		col = col[:0]
		for k := lp.colPtr[j]; k < lp.colPtr[j+1]; k++ {
			col = append(col, entry{pos: pos[lp.rowIdx[k]], val: lp.val[k]})
		}
		sort.Slice(col, func(a, b int) bool { return col[a].pos < col[b].pos })
		for a, e := range col {
			c.aPos = append(c.aPos, e.pos)
			c.aVal = append(c.aVal, e.val)
			lo, hi := c.colPtr[e.pos], c.colPtr[e.pos+1]
			for _, f := range col[a+1:] {
				c.slots = append(c.slots, int32(lo+searchInt32(c.rowIdx[lo:hi], f.pos)))
			}
		}
		c.aPtr[j+1] = len(c.aPos)
		c.pairPtr[j+1] = len(c.slots)
	}
	return c
}

// factor computes L with L·Lᵀ = A·diag(d)·Aᵀ + reg·I. Pivots that vanish
// belong to dependent rows; their solution component is forced to zero.
func (c *normalCholesky) factor(d []float64, reg float64) error {
	for i := range c.val {
		c.val[i] = 0
	}
	for i := range c.diag {
		c.diag[i] = reg
	}
	for j := range d {
		ps := c.aPos[c.aPtr[j]:c.aPtr[j+1]]
		vs := c.aVal[c.aPtr[j]:c.aPtr[j+1]]
		s := c.pairPtr[j]
		for a, p := range ps {
			w := d[j] * vs[a]
			c.diag[p] += w * vs[a]
			for _, v := range vs[a+1:] {
				c.val[c.slots[s]] += w * v
				s++
			}
		}
	}

	maxDiag := 0.0
	for _, v := range c.diag {
		maxDiag = math.Max(maxDiag, v)
	}
	tiny := 1e-30 * math.Max(maxDiag, 1)
	for k := 0; k < c.m; k++ {
		lo, hi := c.colPtr[k], c.colPtr[k+1]
		dk := c.diag[k]
		if math.IsNaN(dk) || math.IsInf(dk, 0) {
			return fmt.Errorf("%w: pivot %g in normal equations", ErrNumerical, dk)
		}
		if dk <= tiny {
			c.diag[k] = 1e64
			for i := lo; i < hi; i++ {
				c.val[i] = 0
			}
			continue
		}
		l := math.Sqrt(dk)
		c.diag[k] = l
		col, rows := c.val[lo:hi], c.rowIdx[lo:hi]
		for a := range col {
			col[a] /= l
		}
		for a, i := range rows {
			lik := col[a]
			if lik == 0 {
				continue
			}
			c.diag[i] -= lik * lik
			ptr, end := c.colPtr[i], c.colPtr[i+1]
			for b := a + 1; b < len(rows); b++ {
				r := rows[b]
				for ptr < end && c.rowIdx[ptr] != r {
					ptr++
				}
				if ptr == end {
					return fmt.Errorf("%w: fill outside symbolic pattern", ErrNumerical)
				}
				c.val[ptr] -= col[b] * lik
			}
		}
	}
	return nil
}

// solve overwrites rhs, indexed by row of A, with the solution of the
// factored system.
func (c *normalCholesky) solve(rhs []float64) {
	w := c.work
	for k, r := range c.perm {
		w[k] = rhs[r]
	}
	for k := 0; k < c.m; k++ {
		w[k] /= c.diag[k]
		wk := w[k]
		if wk == 0 {
			continue
		}
		for i := c.colPtr[k]; i < c.colPtr[k+1]; i++ {
			w[c.rowIdx[i]] -= c.val[i] * wk
		}
	}
	for k := c.m - 1; k >= 0; k-- {
		s := w[k]
		for i := c.colPtr[k]; i < c.colPtr[k+1]; i++ {
			s -= c.val[i] * w[c.rowIdx[i]]
		}
		w[k] = s / c.diag[k]
	}
	for k, r := range c.perm {
		rhs[r] = w[k]
	}
}

type degreeItem struct {
	deg, v int
}

type degreeHeap []degreeItem

func (h degreeHeap) Len() int { return len(h) }
func (h degreeHeap) Less(i, j int) bool {
	if h[i].deg != h[j].deg {
		return h[i].deg < h[j].deg
	}
	return h[i].v < h[j].v
}
func (h degreeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *degreeHeap) Push(x any)   { *h = append(*h, x.(degreeItem)) }
func (h *degreeHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]
	return it
}

// minimumDegree eliminates the non-dense nodes of the graph adj, smallest
// current degree first, and returns the order together with each node's
// neighbours at the time it was eliminated. adj is consumed.
func minimumDegree(adj [][]int32, dense []bool) ([]int, [][]int32) {
	h := make(degreeHeap, 0, len(adj))
	for v := range adj {
		if !dense[v] {
			h = append(h, degreeItem{deg: len(adj[v]), v: v})
		}
	}
	heap.Init(&h)
	done := make([]bool, len(adj))
	pattern := make([][]int32, len(adj))
	order := make([]int, 0, len(adj))
	for h.Len() > 0 {
		it := heap.Pop(&h).(degreeItem)
		v := it.v
		if done[v] || it.deg != len(adj[v]) {
			continue
		}
		done[v] = true
		order = append(order, v)
		nb := adj[v]
		pattern[v] = nb
		adj[v] = nil
		for _, u := range nb {
			adj[u] = mergeNeighbours(adj[u], nb, u, int32(v))
			heap.Push(&h, degreeItem{deg: len(adj[u]), v: int(u)})
		}
	}
	return order, pattern
}

// mergeNeighbours returns the sorted union of a and b without self and gone.
func mergeNeighbours(a, b []int32, self, gone int32) []int32 {
	out := make([]int32, 0, len(a)+len(b))
	add := func(v int32) {
		if v == self || v == gone || (len(out) > 0 && out[len(out)-1] == v) {
			return
		}
		out = append(out, v)
	}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			add(a[i])
			i++
		} else {
			add(b[j])
			j++
		}
	}
	for ; i < len(a); i++ {
		add(a[i])
	}
	for ; j < len(b); j++ {
		add(b[j])
	}
	return out
}

func sortUnique(s []int32) []int32 {
	if len(s) < 2 {
		return s
	}
	sort.Slice(s, func(a, b int) bool { return s[a] < s[b] })
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func searchInt32(s []int32, v int32) int {
	return sort.Search(len(s), func(i int) bool { return s[i] >= v })
}
