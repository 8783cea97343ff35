// Package dispatch plans the charging power of every served session of a
// scenario week under a strategy.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/truckhub/core/logger"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/series"
	"github.com/kilianp07/truckhub/core/strategy"
)

// ErrNoSolution is returned when a unit has no optimal dispatch. The cause is
// wrapped alongside it.
var ErrNoSolution = errors.New("no optimal dispatch")

// Optimizer turns units into dispatch results.
type Optimizer struct {
	solver   optim.Solver
	cfg      Config
	envelope model.Envelope
	log      logger.Logger
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithSolver replaces the default MIP solver.
func WithSolver(s optim.Solver) Option {
	return func(o *Optimizer) { o.solver = s }
}

// WithEnvelope replaces the default charge envelope.
func WithEnvelope(e model.Envelope) Option {
	return func(o *Optimizer) { o.envelope = e }
}

// NewOptimizer returns an optimizer using optim.MIPSolver unless another
// solver is supplied.
func NewOptimizer(cfg Config, log logger.Logger, opts ...Option) *Optimizer {
	cfg.SetDefaults()
	o := &Optimizer{cfg: cfg, envelope: model.DefaultEnvelope, log: log}
	for _, opt := range opts {
		opt(o)
	}
	if o.solver == nil {
		o.solver = optim.NewMIPSolver(cfg.Solver)
	}
	return o
}

// Optimize solves one unit. Unserved sessions are ignored. On failure the
// error wraps ErrNoSolution and no result is returned.
func (o *Optimizer) Optimize(ctx context.Context, u Unit, strat strategy.Strategy) (*model.UnitResult, error) {
	u.Sessions = model.FilterServed(u.Sessions)
	key := model.UnitKey{Scenario: u.Scenario, Week: u.Week, Strategy: strat.Name()}
	fields := logger.Fields{"scenario": u.Scenario, "week": u.Week, "strategy": strat.Name()}
	budget := u.Pool.SiteBudgetKW()
	res := &model.UnitResult{RunID: u.RunID, Key: key, SiteBudgetKW: budget, Quota: 1}
	if len(u.Sessions) == 0 {
		return res, nil
	}

	fail := func(err error) (*model.UnitResult, error) {
		err = fmt.Errorf("%w: %w", ErrNoSolution, err)
		unitsTotal.WithLabelValues(strat.Name(), "failed").Inc()
		fields["error"] = err.Error()
		o.log.Errorw("dispatch unit failed", fields)
		return nil, err
	}
	if budget <= 0 {
		return fail(fmt.Errorf("site budget %.1f kW: %w", budget, optim.ErrInfeasible))
	}

	b := builder{envelope: o.envelope, mode: o.cfg.Mode, log: o.log}
	p, err := b.build(u, strat)
	if err != nil {
		return fail(err)
	}
	fields["variables"] = p.model.NumVars()
	fields["constraints"] = p.model.NumConstraints()
	fields["binaries"] = p.model.NumBinaries()
	o.log.Debugw("dispatch model built", fields)

	start := time.Now()
	sol, err := o.solver.Solve(ctx, p.model)
	elapsed := time.Since(start)
	solveLatency.WithLabelValues(strat.Name()).Observe(elapsed.Seconds())
	if err != nil {
		return fail(err)
	}
	branchNodes.Add(float64(sol.Nodes))

	res.Objective = sol.Objectives
	res.SolveTime = elapsed
	res.Served = len(p.sessions)
	var prices *series.Series
	if pr, ok := strat.(strategy.Priced); ok {
		prices = pr.Prices()
	}
	for i := range p.sessions {
		sr := o.readSession(p, i, sol, prices)
		if sr.FullyCharged {
			res.FullyCharged++
		}
		res.Sessions = append(res.Sessions, sr)
	}
	res.Quota = model.ServiceQuota(res.FullyCharged, res.Served)
	unitsTotal.WithLabelValues(strat.Name(), "ok").Inc()
	unitQuota.WithLabelValues(strat.Name()).Set(res.Quota)
	o.log.Infow("dispatch unit solved", logger.Fields{
		"scenario": u.Scenario, "week": u.Week, "strategy": strat.Name(),
		"served": res.Served, "fully_charged": res.FullyCharged, "quota": res.Quota,
		"solve_ms": elapsed.Milliseconds(),
	})
	return res, nil
}

func (o *Optimizer) readSession(p *plan, i int, sol *optim.Solution, prices *series.Series) model.SessionResult {
	s := p.sessions[i]
	sv := p.view.Sessions[i]
	first := p.view.Offset + sv.Start
	sr := model.SessionResult{
		SessionID:  s.ID,
		Class:      s.Class,
		SoCInitial: s.SoCInitial,
		SoCTarget:  s.SoCTarget,
		Steps:      make([]model.StepResult, 0, sv.Len()+1),
	}
	for k := 0; k < sv.Len(); k++ {
		soc := clean(sol.Value(sv.SoC[k]))
		row := model.StepResult{
			Step:       first + k,
			PowerKW:    clean(sol.Value(sv.Power[k])),
			ChargeKW:   clean(sol.Value(sv.Charge[k])),
			SoC:        soc,
			MaxPowerKW: math.Min(p.caps[i], s.MaxPowerKW),
		}
		if sv.Discharge != nil {
			row.DischargeKW = clean(sol.Value(sv.Discharge[k]))
		}
		if prices != nil {
			row.CostEUR = prices.At(row.Step) * row.PowerKW * model.StepHours / 1000
		}
		sr.EnergyKWh += row.PowerKW * model.StepHours
		sr.Steps = append(sr.Steps, row)
	}
	sr.FinalSoC = clean(sol.Value(sv.SoC[sv.Len()]))
	sr.Steps = append(sr.Steps, model.StepResult{Step: first + sv.Len(), SoC: sr.FinalSoC, Terminal: true})
	sr.FullyCharged = sr.FinalSoC >= s.SoCTarget-model.FullChargeTolerance
	return sr
}

// clean drops solver noise around zero.
func clean(v float64) float64 {
	if math.Abs(v) < 1e-7 {
		return 0
	}
	return v
}
