// Package runner executes a scenario end to end: station sizing, labelling of
// served sessions and the dispatch of every (week, strategy) unit on a
// bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/truckhub/core/capacity"
	"github.com/kilianp07/truckhub/core/dispatch"
	"github.com/kilianp07/truckhub/core/events"
	"github.com/kilianp07/truckhub/core/logger"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/results"
	"github.com/kilianp07/truckhub/core/scenario"
	"github.com/kilianp07/truckhub/core/strategy"
	"github.com/kilianp07/truckhub/internal/eventbus"
)

// ErrNoStrategies is returned when a run has nothing to dispatch with.
var ErrNoStrategies = errors.New("no strategies configured")

// Optimizer solves one unit.
type Optimizer interface {
	Optimize(ctx context.Context, u dispatch.Unit, strat strategy.Strategy) (*model.UnitResult, error)
}

// Input is one scenario run.
type Input struct {
	// RunID tags stored results. A random id is used when empty.
	RunID    string
	Scenario scenario.Scenario
	// Sessions carry their station class. Served flags are recomputed.
	Sessions []model.Session
	// Counts skips sizing when set.
	Counts     map[model.StationClass]int
	Strategies []strategy.Strategy
}

// Failure is a unit without an optimal dispatch.
type Failure struct {
	Key     model.UnitKey
	Outcome string
	Err     error
}

// Report is the outcome of a scenario run. Units holds only solved units.
type Report struct {
	RunID    string
	Scenario string
	Sizing   []capacity.ClassResult
	Counts   map[model.StationClass]int
	Groups   map[capacity.GroupKey]capacity.GroupStats
	Sessions []model.Session
	Units    []*model.UnitResult
	Failures []Failure
}

// Runner wires the optimizer to storage and the event bus.
type Runner struct {
	cfg      Config
	capacity capacity.Config
	opt      Optimizer
	store    results.Store
	bus      *eventbus.Bus[events.Event]
	log      logger.Logger
}

// Option customises a Runner.
type Option func(*Runner)

// WithStore persists every solved unit.
func WithStore(s results.Store) Option { return func(r *Runner) { r.store = s } }

// WithBus publishes unit and sizing events.
func WithBus(b *eventbus.Bus[events.Event]) Option { return func(r *Runner) { r.bus = b } }

// WithCapacity overrides the sizing settings.
func WithCapacity(c capacity.Config) Option { return func(r *Runner) { r.capacity = c } }

// New creates a Runner.
func New(cfg Config, opt Optimizer, log logger.Logger, opts ...Option) *Runner {
	cfg.SetDefaults()
	r := &Runner{cfg: cfg, opt: opt, log: log}
	for _, o := range opts {
		o(r)
	}
	r.capacity.SetDefaults()
	return r
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

// Prepare applies the scenario to a copy of the sessions and validates them.
// Invalid sessions abort the scenario.
func Prepare(sc scenario.Scenario, sessions []model.Session) ([]model.Session, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	out := slices.Clone(sessions)
	sc.Apply(out)
	var errs []error
	for _, s := range out {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// Size searches the station count of every class with a quota. Unreachable
// quotas are logged and the largest count tried is kept.
func (r *Runner) Size(runID string, sc scenario.Scenario, sessions []model.Session) ([]capacity.ClassResult, map[model.StationClass]int, error) {
	res, err := capacity.SizeClasses(sessions, sc.Quotas, r.capacity.Changeover(), r.capacity.MaxIterations)
	if err != nil && !errors.Is(err, capacity.ErrQuotaUnreachable) {
		return nil, nil, err
	}
	name := sc.String()
	for _, cr := range res {
		ev := events.SizingDone{RunID: runID, Scenario: name, Class: cr.Class, Target: sc.Quotas[cr.Class], Result: cr.Result, Time: time.Now()}
		fields := logger.Fields{"scenario": name, "class": cr.Class.String(), "stations": cr.Result.Stations, "quota": cr.Result.Quota}
		if cr.Err != nil {
			ev.Error = cr.Err.Error()
			fields["error"] = ev.Error
			r.log.Warnw("service quota unreachable", fields)
		} else {
			r.log.Infow("stations sized", fields)
		}
		r.publish(ev)
	}
	return res, capacity.Counts(res), nil
}

// Run sizes (unless counts are given), labels and dispatches one scenario.
// Units without an optimal solution are reported in Failures and the run
// continues. Storage errors and cancellation of ctx abort the run.
func (r *Runner) Run(ctx context.Context, in Input) (*Report, error) {
	if len(in.Strategies) == 0 {
		return nil, ErrNoStrategies
	}
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	name := in.Scenario.String()
	sessions, err := Prepare(in.Scenario, in.Sessions)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	rep := &Report{RunID: runID, Scenario: name, Counts: in.Counts}
	if rep.Counts == nil {
		rep.Sizing, rep.Counts, err = r.Size(runID, in.Scenario, sessions)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: sizing: %w", name, err)
		}
	}
	pool := in.Scenario.Pool(rep.Counts)
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	rep.Sessions, rep.Groups = capacity.Label(sessions, pool, r.capacity.Changeover())

	byWeek := model.GroupByWeek(rep.Sessions)
	weeks := r.weeks(byWeek)
	r.log.Infow("dispatch started", logger.Fields{
		"scenario": name, "run_id": runID, "weeks": len(weeks),
		"strategies": len(in.Strategies), "workers": r.cfg.Workers,
	})

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, w := range weeks {
		for _, strat := range in.Strategies {
			if gctx.Err() != nil {
				break
			}
			u := dispatch.Unit{
				RunID:         runID,
				Scenario:      name,
				Week:          w,
				Sessions:      byWeek[w],
				Pool:          pool,
				Bidirectional: in.Scenario.Bidirectional,
			}
			g.Go(func() error {
				res, fail, err := r.unit(gctx, u, strat)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if fail != nil {
					rep.Failures = append(rep.Failures, *fail)
				} else {
					rep.Units = append(rep.Units, res)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	results.Sort(rep.Units)
	slices.SortFunc(rep.Failures, func(a, b Failure) int {
		if a.Key.Week != b.Key.Week {
			return a.Key.Week - b.Key.Week
		}
		if a.Key.Strategy < b.Key.Strategy {
			return -1
		}
		if a.Key.Strategy > b.Key.Strategy {
			return 1
		}
		return 0
	})
	r.log.Infow("dispatch finished", logger.Fields{
		"scenario": name, "run_id": runID, "solved": len(rep.Units), "failed": len(rep.Failures),
	})
	return rep, nil
}

func (r *Runner) weeks(byWeek map[int][]model.Session) []int {
	var out []int
	for w := range byWeek {
		if len(r.cfg.Weeks) == 0 || slices.Contains(r.cfg.Weeks, w) {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return out
}

// unit solves and stores one unit. A returned error aborts the run; a
// returned Failure does not.
func (r *Runner) unit(ctx context.Context, u dispatch.Unit, strat strategy.Strategy) (*model.UnitResult, *Failure, error) {
	key := model.UnitKey{Scenario: u.Scenario, Week: u.Week, Strategy: strat.Name()}
	r.publish(events.UnitStarted{RunID: u.RunID, Key: key, Sessions: len(u.Sessions), Time: time.Now()})

	uctx := ctx
	if r.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, r.cfg.UnitTimeout)
		defer cancel()
	}
	start := time.Now()
	res, err := r.opt.Optimize(uctx, u, strat)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		outcome := events.OutcomeNoSolution
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = events.OutcomeTimeout
			r.log.Warnw("dispatch unit timed out", logger.Fields{
				"scenario": u.Scenario, "week": u.Week, "strategy": strat.Name(), "timeout": r.cfg.UnitTimeout.String(),
			})
		}
		r.publish(events.UnitFinished{RunID: u.RunID, Key: key, Outcome: outcome, Error: err.Error(), Duration: elapsed, Time: time.Now()})
		return nil, &Failure{Key: key, Outcome: outcome, Err: err}, nil
	}
	if r.store != nil {
		if err := r.store.WriteUnit(ctx, res); err != nil {
			return nil, nil, fmt.Errorf("store unit %s/%d/%s: %w", key.Scenario, key.Week, key.Strategy, err)
		}
	}
	r.publish(events.Finished(res, elapsed))
	return res, nil, nil
}
