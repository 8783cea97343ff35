package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// columnLP builds a sparseLP holding only the pattern and values of A.
func columnLP(m int, cols [][]int, vals [][]float64) *sparseLP {
	lp := &sparseLP{m: m, n: len(cols), colPtr: make([]int, len(cols)+1)}
	for j, rows := range cols {
		for k, r := range rows {
			lp.rowIdx = append(lp.rowIdx, int32(r))
			lp.val = append(lp.val, vals[j][k])
		}
		lp.colPtr[j+1] = len(lp.rowIdx)
	}
	return lp
}

// normalMatrix returns A·diag(d)·Aᵀ + reg·I as a dense matrix.
func normalMatrix(lp *sparseLP, d []float64, reg float64) *mat.Dense {
	M := mat.NewDense(lp.m, lp.m, nil)
	for j := 0; j < lp.n; j++ {
		for a := lp.colPtr[j]; a < lp.colPtr[j+1]; a++ {
			for b := lp.colPtr[j]; b < lp.colPtr[j+1]; b++ {
				r, s := int(lp.rowIdx[a]), int(lp.rowIdx[b])
				M.Set(r, s, M.At(r, s)+d[j]*lp.val[a]*lp.val[b])
			}
		}
	}
	for i := 0; i < lp.m; i++ {
		M.Set(i, i, M.At(i, i)+reg)
	}
	return M
}

func assertSolves(t *testing.T, lp *sparseLP, d []float64, reg float64) {
	t.Helper()
	chol := newNormalCholesky(lp)
	require.NoError(t, chol.factor(d, reg))
	rhs := make([]float64, lp.m)
	for i := range rhs {
		rhs[i] = float64(i%4) - 1.5
	}
	y := append([]float64(nil), rhs...)
	chol.solve(y)

	var got mat.VecDense
	got.MulVec(normalMatrix(lp, d, reg), mat.NewVecDense(lp.m, y))
	for i := range rhs {
		assert.InDelta(t, rhs[i], got.AtVec(i), 1e-8, "row %d", i)
	}
}

func TestNormalCholeskyChain(t *testing.T) {
	// A staircase like the SoC recursion: column j links rows j and j+1.
	const m = 30
	var cols [][]int
	var vals [][]float64
	for j := 0; j < m; j++ {
		rows, v := []int{j}, []float64{1}
		if j+1 < m {
			rows, v = append(rows, j+1), append(v, -0.5)
		}
		cols, vals = append(cols, rows), append(vals, v)
	}
	for j := 0; j < m; j += 3 {
		cols, vals = append(cols, []int{j, (j + 7) % m}), append(vals, []float64{2, 1})
	}
	lp := columnLP(m, cols, vals)
	d := make([]float64, lp.n)
	for j := range d {
		d[j] = 1 + float64(j%5)
	}
	assertSolves(t, lp, d, 0)
}

func TestNormalCholeskyLongRow(t *testing.T) {
	// Row 0 touches every column and is kept out of the ordering.
	n := denseRowLimit(4) + 200
	cols := make([][]int, n)
	vals := make([][]float64, n)
	for j := range cols {
		cols[j], vals[j] = []int{0}, []float64{1 + float64(j%3)}
		switch {
		case j < 10:
			cols[j], vals[j] = append(cols[j], 1), append(vals[j], 2)
		case j < 20:
			cols[j], vals[j] = append(cols[j], 1, 2), append(vals[j], -1, 1)
		case j < 25:
			cols[j], vals[j] = append(cols[j], 3), append(vals[j], 0.5)
		}
	}
	lp := columnLP(4, cols, vals)
	chol := newNormalCholesky(lp)
	assert.Equal(t, 0, chol.perm[3], "long row eliminated last")

	d := make([]float64, n)
	for j := range d {
		d[j] = 1e-3 * float64(1+j%7)
	}
	assertSolves(t, lp, d, 1e-10)
}

func TestMinimumDegreeEliminatesHubLast(t *testing.T) {
	// Star with centre 0 and six leaves.
	adj := make([][]int32, 7)
	for v := int32(1); v < 7; v++ {
		adj[0] = append(adj[0], v)
		adj[v] = []int32{0}
	}
	order, pattern := minimumDegree(adj, make([]bool, 7))
	require.Len(t, order, 7)
	for _, v := range order[:5] {
		assert.NotEqual(t, 0, v)
		assert.Equal(t, []int32{0}, pattern[v])
	}
}

func TestMergeNeighbours(t *testing.T) {
	got := mergeNeighbours([]int32{1, 3, 5, 8}, []int32{2, 3, 4, 8, 9}, 4, 5)
	assert.Equal(t, []int32{1, 2, 3, 8, 9}, got)
}
