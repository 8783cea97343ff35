package synth

import (
	"math"

	"github.com/kilianp07/truckhub/core/logger"
	"github.com/kilianp07/truckhub/core/model"
)

// ChargeMinutes simulates charging from the initial to the target SoC at a
// station rated stationKW and returns the minutes needed on the grid. ok is
// false when the envelope stops the battery short of the target.
func ChargeMinutes(s model.Session, stationKW float64, env model.Envelope) (minutes int, ok bool) {
	soc := s.SoCInitial
	for soc < s.SoCTarget {
		p := math.Min(stationKW, env.MaxPowerKW(soc, s.MaxPowerKW))
		if p <= 0 {
			return minutes, false
		}
		minutes += model.StepMinutes
		soc += p * model.StepHours / s.CapacityKWh
	}
	return minutes, true
}

// AssignClass picks the station class for a session: NCS for night breaks,
// otherwise HPC when it reaches the target within the break and MCS if not.
// fits is false when even MCS cannot finish in time.
func AssignClass(s model.Session, env model.Envelope) (class model.StationClass, fits bool) {
	if s.Pause == model.PauseNight {
		return model.NCS, true
	}
	pause := s.Duration()
	if m, ok := ChargeMinutes(s, model.HPC.NominalPowerKW(), env); ok && m <= pause {
		return model.HPC, true
	}
	m, ok := ChargeMinutes(s, model.MCS.NominalPowerKW(), env)
	return model.MCS, ok && m <= pause
}

// AssignClasses sets the class of every session in place and returns how many
// fast-break sessions cannot be fully charged even on MCS.
func AssignClasses(sessions []model.Session, env model.Envelope, log logger.Logger) int {
	unmet := 0
	for i := range sessions {
		s := &sessions[i]
		if s.Pause == model.PauseFast && s.TargetBelowInitial() {
			log.Warnw("soc target below initial soc", logger.Fields{
				"session": s.ID, "cluster": s.Cluster, "soc_initial": s.SoCInitial, "soc_target": s.SoCTarget,
			})
		}
		class, fits := AssignClass(*s, env)
		s.Class = class
		if !fits {
			unmet++
		}
	}
	if unmet > 0 {
		log.Warnw("sessions cannot be fully charged within their break", logger.Fields{"count": unmet})
	}
	return unmet
}

// ClassShares returns the fraction of sessions per class.
func ClassShares(sessions []model.Session) map[model.StationClass]float64 {
	out := make(map[model.StationClass]float64, len(model.Classes))
	if len(sessions) == 0 {
		return out
	}
	for _, s := range sessions {
		out[s.Class]++
	}
	for c := range out {
		out[c] /= float64(len(sessions))
	}
	return out
}
