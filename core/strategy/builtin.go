package strategy

import (
	"fmt"
	"math"

	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/series"
)

var inf = math.Inf(1)

// frontLoad charges as early as possible and penalises late discharge.
type frontLoad struct{}

func (frontLoad) Name() string { return PMax }

func (frontLoad) Apply(v *View) (Objectives, error) {
	var e optim.Expr
	for _, s := range v.Sessions {
		for k := range s.Charge {
			t := float64(s.Start + k)
			e.Add(s.Charge[k], 1/(t+1))
			if s.Discharge != nil {
				e.Add(s.Discharge[k], -t)
			}
		}
	}
	monotoneDirection(v)
	return Objectives{Primary: e}, nil
}

// backLoad charges as late as possible.
type backLoad struct{}

func (backLoad) Name() string { return PMin }

func (backLoad) Apply(v *View) (Objectives, error) {
	var e optim.Expr
	for _, s := range v.Sessions {
		for k := range s.Charge {
			t := float64(s.Start + k)
			e.Add(s.Charge[k], t)
			if s.Discharge != nil {
				e.Add(s.Discharge[k], -t)
			}
		}
	}
	monotoneDirection(v)
	return Objectives{Primary: e}, nil
}

// chargeOnly front-loads and never discharges.
type chargeOnly struct{}

func (chargeOnly) Name() string { return TMin }

func (chargeOnly) Apply(v *View) (Objectives, error) {
	var e optim.Expr
	for _, s := range v.Sessions {
		for k := range s.Charge {
			e.Add(s.Charge[k], 1/float64(s.Start+k+1))
		}
		for _, d := range s.Discharge {
			v.Model.Fix(d, 0)
		}
	}
	return Objectives{Primary: e}, nil
}

// smooth delivers the energy with the fewest power changes.
type smooth struct{ weight float64 }

func (smooth) Name() string { return Konstant }

func (st smooth) Apply(v *View) (Objectives, error) {
	var penalty optim.Expr
	for _, s := range v.Sessions {
		for k := 0; k+1 < s.Len(); k++ {
			d := v.Model.AddVar(fmt.Sprintf("delta_%s_%d", s.ID, s.Start+k), 0, inf)
			var up, down optim.Expr
			up.Add(d, 1).Add(s.Power[k+1], -1).Add(s.Power[k], 1)
			down.Add(d, 1).Add(s.Power[k+1], 1).Add(s.Power[k], -1)
			v.Model.AddConstraint(fmt.Sprintf("ramp_up_%s_%d", s.ID, s.Start+k), up, optim.GE, 0)
			v.Model.AddConstraint(fmt.Sprintf("ramp_down_%s_%d", s.ID, s.Start+k), down, optim.GE, 0)
			penalty.Add(d, -1)
		}
	}
	return Objectives{Primary: sumCharge(v), Secondary: &penalty, Weight: st.weight}, nil
}

// price buys energy first, then at the lowest cost of a market series.
type price struct {
	name   string
	series *series.Series
	weight float64
}

func (p *price) Name() string { return p.name }

func (p *price) Prices() *series.Series { return p.series }

func (p *price) Apply(v *View) (Objectives, error) {
	var energy, cost optim.Expr
	for _, s := range v.Sessions {
		for k, pw := range s.Power {
			energy.Add(pw, 1)
			cost.Add(pw, -p.series.At(v.Offset+s.Start+k))
		}
	}
	return Objectives{Primary: energy, Secondary: &cost, Weight: p.weight}, nil
}

// imbalance charges against the system imbalance: it draws when the grid is
// long and feeds back when it is short.
type imbalance struct {
	series *series.Series
	weight float64
}

func (*imbalance) Name() string { return NRV }

func (n *imbalance) Apply(v *View) (Objectives, error) {
	signal := n.series.Normalized(v.Offset, v.Horizon)
	var follow optim.Expr
	for _, s := range v.Sessions {
		for k := range s.Charge {
			sig := signal[s.Start+k]
			follow.Add(s.Charge[k], -sig)
			if s.Discharge != nil {
				follow.Add(s.Discharge[k], sig)
			}
		}
	}
	return Objectives{Primary: sumCharge(v), Secondary: &follow, Weight: n.weight}, nil
}
