// Package strategy defines the objective functions that decide how the
// dispatch optimizer spreads power over a session's window.
//
// Every strategy first maximises delivered energy in some form and may then
// refine the plan with a secondary objective such as cost or smoothness.
package strategy

import (
	"errors"
	"fmt"

	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/series"
)

var (
	// ErrUnknownStrategy is returned for names outside Names.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrMissingSeries is returned when a strategy needs a series that was not loaded.
	ErrMissingSeries = errors.New("missing series for strategy")
)

const (
	PMax     = "p_max"
	PMin     = "p_min"
	DayAhead = "day_ahead"
	Intraday = "intraday"
	Konstant = "konstant"
	NRV      = "nrv"
	TMin     = "t_min"
)

// Names lists the built-in strategies in their canonical order.
var Names = []string{PMax, PMin, DayAhead, Intraday, Konstant, NRV, TMin}

// SessionVars are the decision variables of one session. Index k of Power,
// Charge, Discharge and Direction is local step Start+k. SoC has one extra
// entry for the state after the last step. Discharge and Direction are nil
// when the unit is unidirectional.
type SessionVars struct {
	ID        string
	Start     int
	Power     []optim.Var
	Charge    []optim.Var
	Discharge []optim.Var
	Direction []optim.Var
	SoC       []optim.Var
}

// Len returns the number of power steps.
func (s SessionVars) Len() int { return len(s.Power) }

// View is what a strategy sees of a unit's model. Local step 0 is the first
// step of the unit's week; Offset is its global grid index.
type View struct {
	Model         *optim.Model
	Sessions      []SessionVars
	Offset        int
	Horizon       int
	Bidirectional bool
}

// Objectives is a primary objective and an optional refinement, both
// maximised. Weight is the factor applied to Primary when both are folded into
// a single weighted objective.
type Objectives struct {
	Primary   optim.Expr
	Secondary *optim.Expr
	Weight    float64
}

// Strategy builds objectives and any extra constraints on a unit model.
type Strategy interface {
	Name() string
	Apply(v *View) (Objectives, error)
}

// Priced is implemented by strategies that optimise against a price series.
// The dispatch uses it to report cost per step.
type Priced interface {
	Prices() *series.Series
}

// Options configure strategy construction.
type Options struct {
	// Series by name, e.g. "day_ahead", "intraday", "nrv".
	Series map[string]*series.Series `json:"-"`
	// PriceWeight is the dominance factor for price strategies in weighted mode.
	PriceWeight float64 `json:"price_weight"`
	// EnergyWeight is the dominance factor for konstant and nrv in weighted mode.
	EnergyWeight float64 `json:"energy_weight"`
}

// SetDefaults fills zero weights.
func (o *Options) SetDefaults() {
	if o.PriceWeight == 0 {
		o.PriceWeight = 1e4
	}
	if o.EnergyWeight == 0 {
		o.EnergyWeight = 1e6
	}
}

// New returns the strategy registered under name.
func New(name string, opts Options) (Strategy, error) {
	opts.SetDefaults()
	lookup := func(key string) (*series.Series, error) {
		s, ok := opts.Series[key]
		if !ok || s == nil || s.Len() == 0 {
			return nil, fmt.Errorf("%w: %s needs series %q", ErrMissingSeries, name, key)
		}
		return s, nil
	}
	switch name {
	case PMax:
		return frontLoad{}, nil
	case PMin:
		return backLoad{}, nil
	case TMin:
		return chargeOnly{}, nil
	case Konstant:
		return smooth{weight: opts.EnergyWeight}, nil
	case DayAhead, Intraday:
		s, err := lookup(name)
		if err != nil {
			return nil, err
		}
		return &price{name: name, series: s, weight: opts.PriceWeight}, nil
	case NRV:
		s, err := lookup(NRV)
		if err != nil {
			return nil, err
		}
		return &imbalance{series: s, weight: opts.EnergyWeight}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// NewAll builds the named strategies, or all of Names when names is empty.
func NewAll(names []string, opts Options) ([]Strategy, error) {
	if len(names) == 0 {
		names = Names
	}
	out := make([]Strategy, 0, len(names))
	var errs []error
	for _, n := range names {
		s, err := New(n, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// monotoneDirection forbids switching back from charging to discharging
// within a session.
func monotoneDirection(v *View) {
	for _, s := range v.Sessions {
		for k := 0; k+1 < len(s.Direction); k++ {
			var e optim.Expr
			e.Add(s.Direction[k+1], 1).Add(s.Direction[k], -1)
			v.Model.AddConstraint(fmt.Sprintf("dir_%s_%d", s.ID, s.Start+k), e, optim.GE, 0)
		}
	}
}

// sumCharge is Σ Pplus over every session and step.
func sumCharge(v *View) optim.Expr {
	var e optim.Expr
	for _, s := range v.Sessions {
		for _, p := range s.Charge {
			e.Add(p, 1)
		}
	}
	return e
}
