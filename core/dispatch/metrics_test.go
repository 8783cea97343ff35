package dispatch

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/strategy"
)

func TestOptimizerRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	t.Cleanup(func() { ResetMetrics(nil) })

	opt := NewOptimizer(Config{}, &spyLogger{})
	st, err := strategy.New(strategy.PMin, strategy.Options{})
	require.NoError(t, err)
	sessions := []model.Session{ncsSession("a"), ncsSession("b")}

	_, err = opt.Optimize(context.Background(), Unit{Scenario: "sc", Week: 1, Sessions: sessions, Pool: ncsPool(2, 1)}, st)
	require.NoError(t, err)
	_, err = opt.Optimize(context.Background(), Unit{Scenario: "sc", Week: 2, Sessions: sessions, Pool: ncsPool(2, 0)}, st)
	require.ErrorIs(t, err, ErrNoSolution)

	assert.Equal(t, 1.0, testutil.ToFloat64(unitsTotal.WithLabelValues(strategy.PMin, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(unitsTotal.WithLabelValues(strategy.PMin, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(unitQuota.WithLabelValues(strategy.PMin)))
	// the zero budget unit fails before reaching the solver
	assert.Equal(t, 1, testutil.CollectAndCount(solveLatency, "dispatch_solve_seconds"))

	names := map[string]bool{}
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{"dispatch_units_total", "dispatch_solve_seconds", "dispatch_unit_quota", "dispatch_branch_nodes_total"} {
		assert.True(t, names[n], n)
	}
}
