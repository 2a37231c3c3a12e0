package twin

import (
	"math"
	"time"
)

// Heater steady-state regression: temperature rise per unit heater power.
const heaterSteadyGain = 0.68 / 0.0026

// basicDiameterGain is 2·R_fil·sqrt(pitch/D_spool), the closed-form constant
// relating sqrt(feed/spool) to fiber diameter.
var basicDiameterGain = 2 * FilamentRadius * math.Sqrt(FeedGearPitch/SpoolDiameter)

// steadyState is the regime logic shared by the steady-state variants.
// Heater temperature and spool speed follow their power setpoints whenever a
// setpoint changes; otherwise a directly written value is kept.
type steadyState struct {
	st      *State
	tracker setpointTracker

	diameter func(feed, spool float64) float64
	stdev    func(d, temp float64) float64
	currents func(st *State, temp, feed, spool float64)
}

func (m *steadyState) Update(elapsed time.Duration) {
	st := m.st
	log := st.log

	if hp := st.HeaterPower(); m.tracker.heaterChanged(hp) {
		st.heaterTemp.assign(AmbientTemperature+heaterSteadyGain*hp, log)
	}
	if sp := st.SpoolPower(); m.tracker.spoolChanged(sp) {
		st.spoolSpeed.assign(MaxSpoolSpeed*sp, log)
	}

	temp := st.HeaterTemperature()
	if temp > MeltThreshold {
		feed := st.feedSpeed.assign(st.FeedFrequency()/FeedGearConstant, log)
		spool := st.SpoolSpeed()
		d := 0.0
		if feed > 0 && spool > 0 {
			d = st.fiberDiameter.assign(m.diameter(feed, spool), log)
			st.diameterStdev.assign(m.stdev(d, temp), log)
			if elapsed > 0 {
				st.fiberLength.add(math.Pi * SpoolDiameter * spool * elapsed.Seconds())
			}
		}
		if d == 0 {
			st.fiberDiameter.assign(0, log)
			st.diameterStdev.assign(0, log)
		}
	} else {
		// The spool resumes from a nonzero power setpoint once melted.
		if st.SpoolPower() > 0 {
			m.tracker.forgetSpool()
		}
		st.feedSpeed.assign(0, log)
		st.spoolSpeed.assign(0, log)
		st.fiberDiameter.assign(0, log)
		st.diameterStdev.assign(0, log)
	}

	m.currents(st, st.HeaterTemperature(), st.FeedSpeed(), st.SpoolSpeed())
}

// physicalCurrents models heater draw from power and spool draw from speed.
func physicalCurrents(st *State, _, _, spool float64) {
	st.setCurrents(
		st.HeaterPower()*heaterFullScaleCurrent,
		spool/MaxSpoolSpeed*spoolFullScaleCurrent,
		stepperIdleCurrent,
	)
}

type basicStateModel struct {
	steadyState
}

func newBasicState(st *State) *basicStateModel {
	return &basicStateModel{steadyState{
		st: st,
		diameter: func(feed, spool float64) float64 {
			return basicDiameterGain * ratio(feed, spool)
		},
		stdev:    func(float64, float64) float64 { return 0 },
		currents: physicalCurrents,
	}}
}

func (m *basicStateModel) Variant() Variant { return BasicState }

func (m *basicStateModel) SpoolSpeedFor(feed, diameter float64) float64 {
	if !(feed > 0) || !(diameter > 0) {
		return 0
	}
	return feed * basicDiameterGain * basicDiameterGain / (diameter * diameter)
}
