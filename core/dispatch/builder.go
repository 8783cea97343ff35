package dispatch

import (
	"fmt"

	"github.com/kilianp07/truckhub/core/logger"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/strategy"
)

// Unit is the set of served sessions of one scenario week.
type Unit struct {
	RunID         string
	Scenario      string
	Week          int
	Sessions      []model.Session
	Pool          model.StationPool
	Bidirectional bool
}

// horizon returns the global step of local step 0 and the number of local
// steps up to and including the last terminal SoC.
func (u Unit) horizon() (offset, n int) {
	offset = model.WeekStartStep(u.Week)
	last := offset
	for _, s := range u.Sessions {
		_, tOut := s.Steps()
		if tOut+1 > last {
			last = tOut + 1
		}
	}
	return offset, last - offset + 1
}

// plan is a built unit model together with the data needed to read the
// solution back.
type plan struct {
	model    *optim.Model
	view     *strategy.View
	sessions []model.Session
	caps     []float64
}

type builder struct {
	envelope model.Envelope
	mode     Mode
	log      logger.Logger
}

func (b builder) build(u Unit, strat strategy.Strategy) (*plan, error) {
	offset, n := u.horizon()
	m := optim.NewModel(fmt.Sprintf("%s/w%d/%s", u.Scenario, u.Week, strat.Name()))
	p := &plan{
		model:    m,
		view:     &strategy.View{Model: m, Offset: offset, Horizon: n, Bidirectional: u.Bidirectional},
		sessions: u.Sessions,
		caps:     make([]float64, len(u.Sessions)),
	}
	for i, s := range u.Sessions {
		if s.TargetBelowInitial() {
			b.log.Warnw("soc target below initial soc, requirement clamped to zero", logger.Fields{
				"scenario": u.Scenario, "week": u.Week, "session": s.ID,
				"soc_initial": s.SoCInitial, "soc_target": s.SoCTarget,
			})
		}
		p.caps[i] = u.Pool.PowerCapKW(s.Class)
		p.view.Sessions = append(p.view.Sessions, b.addSession(m, s, offset, p.caps[i], u.Bidirectional))
	}
	b.addSiteCap(p, u.Pool.SiteBudgetKW())

	obj, err := strat.Apply(p.view)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", strat.Name(), err)
	}
	switch {
	case obj.Secondary == nil:
		m.AddObjective("primary", obj.Primary, optim.Maximize)
	case b.mode == Weighted:
		m.AddObjective("weighted", obj.Primary.Scale(obj.Weight).Plus(*obj.Secondary), optim.Maximize)
	default:
		m.AddObjective("primary", obj.Primary, optim.Maximize)
		m.AddObjective("secondary", *obj.Secondary, optim.Maximize)
	}
	return p, nil
}

// addSession adds the variables and per-session constraints of s: SoC
// recursion from the fixed initial state, energy budget, charge envelope and
// the station cap.
func (b builder) addSession(m *optim.Model, s model.Session, offset int, stationCap float64, bidirectional bool) strategy.SessionVars {
	tIn, tOut := s.Steps()
	steps := tOut - tIn + 1
	sv := strategy.SessionVars{
		ID:     s.ID,
		Start:  tIn - offset,
		Power:  make([]optim.Var, steps),
		Charge: make([]optim.Var, steps),
		SoC:    make([]optim.Var, steps+1),
	}
	if bidirectional {
		sv.Discharge = make([]optim.Var, steps)
		sv.Direction = make([]optim.Var, steps)
	}
	name := func(kind string, k int) string { return fmt.Sprintf("%s_%s_%d", kind, s.ID, tIn+k) }

	for k := 0; k < steps; k++ {
		if !bidirectional {
			sv.Power[k] = m.AddVar(name("p", k), 0, stationCap)
			sv.Charge[k] = sv.Power[k]
			continue
		}
		sv.Power[k] = m.AddVar(name("p", k), -stationCap, stationCap)
		sv.Charge[k] = m.AddVar(name("pplus", k), 0, stationCap)
		sv.Discharge[k] = m.AddVar(name("pminus", k), 0, stationCap)
		sv.Direction[k] = m.AddBinary(name("z", k))

		var split, charge, discharge optim.Expr
		split.Add(sv.Power[k], 1).Add(sv.Charge[k], -1).Add(sv.Discharge[k], 1)
		m.AddConstraint(name("split", k), split, optim.EQ, 0)
		charge.Add(sv.Charge[k], 1).Add(sv.Direction[k], -stationCap)
		m.AddConstraint(name("cap_charge", k), charge, optim.LE, 0)
		discharge.Add(sv.Discharge[k], 1).Add(sv.Direction[k], stationCap)
		m.AddConstraint(name("cap_discharge", k), discharge, optim.LE, stationCap)
	}

	for k := range sv.SoC {
		sv.SoC[k] = m.AddVar(name("soc", k), 0, 1)
	}
	m.Fix(sv.SoC[0], s.SoCInitial)

	perKW := model.StepHours / s.CapacityKWh
	var energy optim.Expr
	for k := 0; k < steps; k++ {
		var rec optim.Expr
		rec.Add(sv.SoC[k+1], 1).Add(sv.SoC[k], -1).Add(sv.Power[k], -perKW)
		m.AddConstraint(name("soc", k+1), rec, optim.EQ, 0)
		energy.Add(sv.Power[k], model.StepHours)

		for j, a := range b.envelope {
			limit := func(v optim.Var, kind string) {
				var e optim.Expr
				e.Add(v, 1).Add(sv.SoC[k], -a.Slope*s.MaxPowerKW)
				m.AddConstraint(name(fmt.Sprintf("%s%d", kind, j), k), e, optim.LE, a.Intercept*s.MaxPowerKW)
			}
			limit(sv.Charge[k], "env_plus")
			if bidirectional {
				limit(sv.Discharge[k], "env_minus")
			}
		}
	}
	m.AddConstraint(fmt.Sprintf("energy_%s", s.ID), energy, optim.LE, s.EnergyRequiredKWh())
	return sv
}

// addSiteCap limits the summed charge and discharge at every step. Steps
// whose station caps cannot exceed the budget get no row.
func (b builder) addSiteCap(p *plan, budget float64) {
	rows := make([]optim.Expr, p.view.Horizon)
	load := make([]float64, p.view.Horizon)
	for i, sv := range p.view.Sessions {
		for k := range sv.Charge {
			t := sv.Start + k
			rows[t].Add(sv.Charge[k], 1)
			if sv.Discharge != nil {
				rows[t].Add(sv.Discharge[k], 1)
			}
			load[t] += p.caps[i]
		}
	}
	for t, e := range rows {
		if len(e.Terms) == 0 || load[t] <= budget {
			continue
		}
		p.model.AddConstraint(fmt.Sprintf("site_%d", p.view.Offset+t), e, optim.LE, budget)
	}
}
