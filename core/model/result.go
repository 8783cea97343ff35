package model

import "time"

// FullChargeTolerance is the SoC slack accepted when judging a full charge.
const FullChargeTolerance = 0.01

// StepResult is the dispatch of one session at one grid step. Steps are global
// grid indices. The terminal row at tOut+1 carries only the SoC.
type StepResult struct {
	Step        int     `json:"step"`
	PowerKW     float64 `json:"power_kw"`
	ChargeKW    float64 `json:"charge_kw"`
	DischargeKW float64 `json:"discharge_kw"`
	SoC         float64 `json:"soc"`
	MaxPowerKW  float64 `json:"max_power_kw"`
	CostEUR     float64 `json:"cost_eur,omitempty"`
	Terminal    bool    `json:"terminal,omitempty"`
}

// SessionResult is the dispatch plan of one served session.
type SessionResult struct {
	SessionID    string       `json:"session_id"`
	Class        StationClass `json:"class"`
	SoCInitial   float64      `json:"soc_initial"`
	SoCTarget    float64      `json:"soc_target"`
	FinalSoC     float64      `json:"final_soc"`
	EnergyKWh    float64      `json:"energy_kwh"`
	FullyCharged bool         `json:"fully_charged"`
	Steps        []StepResult `json:"steps"`
}

// UnitKey identifies one (scenario, week, strategy) unit of work.
type UnitKey struct {
	Scenario string `json:"scenario"`
	Week     int    `json:"week"`
	Strategy string `json:"strategy"`
}

// UnitResult is the complete output of a solved unit. A unit without an
// optimal solution produces no UnitResult.
type UnitResult struct {
	RunID        string          `json:"run_id"`
	Key          UnitKey         `json:"key"`
	SiteBudgetKW float64         `json:"site_budget_kw"`
	Objective    []float64       `json:"objective"`
	Served       int             `json:"served"`
	FullyCharged int             `json:"fully_charged"`
	Quota        float64         `json:"quota"`
	SolveTime    time.Duration   `json:"solve_time"`
	Sessions     []SessionResult `json:"sessions"`
}

// ServiceQuota returns the fraction of fully charged sessions; an empty set
// counts as fully served.
func ServiceQuota(fullyCharged, served int) float64 {
	if served == 0 {
		return 1
	}
	return float64(fullyCharged) / float64(served)
}
