package twin

import "time"

// Winding traverse and fiber length regressions.
const (
	// windTraverseGain folds the traverse stepper rate (600 steps per spool
	// rotation scaled by the diameter ratio) and its 0.0025 mm step.
	windTraverseGain = 600 * 6.732 * 0.0025
	// windFactorSlope is the relative diameter loss per completed pass.
	windFactorSlope = 0.0054695
	// lengthGain relates feed speed and diameter to wound length in m/s.
	lengthGain = 2.848
)

// regressionDynamicModel extends the regressions with first-order heater lag,
// an asymmetric spool ramp and a per-pass diameter correction.
type regressionDynamicModel struct {
	st     *State
	params Params

	// heater power after the thermal low-pass filter
	effectivePower float64
	// traverse travel within the current pass, mm
	travel     float64
	windFactor *bounded
}

func newRegressionDynamic(st *State, params Params) *regressionDynamicModel {
	return &regressionDynamicModel{
		st:         st,
		params:     params,
		windFactor: newBounded("wind_factor", params.WindFactorFloor, 1, 1),
	}
}

func (m *regressionDynamicModel) Variant() Variant { return RegressionDynamic }

func (m *regressionDynamicModel) Update(elapsed time.Duration) {
	st := m.st
	log := st.log

	target := st.HeaterPower()
	tau := m.params.CoolingTau
	if target > m.effectivePower {
		tau = m.params.HeatingTau
	}
	m.effectivePower = approach(m.effectivePower, target, elapsed, tau)
	temp := st.heaterTemp.assign(AmbientTemperature+heaterSteadyGain*m.effectivePower, log)

	spoolTarget := MaxSpoolSpeed * st.SpoolPower()
	spool := st.SpoolSpeed()
	tau = m.params.SpoolDecelTau
	if spoolTarget > spool {
		tau = m.params.SpoolAccelTau
	}
	spool = st.spoolSpeed.assign(approach(spool, spoolTarget, elapsed, tau), log)

	feed := 0.0
	d := 0.0
	if temp > MeltThreshold {
		feed = st.feedSpeed.assign(st.FeedFrequency()/FeedGearConstant, log)
		if r := ratio(feed, spool); r > 0 {
			d = st.fiberDiameter.assign(regressionDiameter(feed, spool)*m.windFactor.load(), log)
			st.diameterStdev.assign(regressionStdev(d, temp), log)
			if elapsed > 0 && d > 0 {
				dt := elapsed.Seconds()
				m.wind(windTraverseGain * spool * r * dt)
				st.fiberLength.add(feed * lengthGain * dt / (d * d) * 1000)
			}
		}
	} else {
		st.feedSpeed.assign(0, log)
	}
	if d == 0 {
		st.fiberDiameter.assign(0, log)
		st.diameterStdev.assign(0, log)
	}

	st.setCurrents(
		m.effectivePower*heaterFullScaleCurrent,
		spool/MaxSpoolSpeed*spoolFullScaleCurrent,
		stepperIdleCurrent,
	)
}

// wind advances the traverse by distance mm, counting completed passes and
// refreshing the wind factor when the count changes.
func (m *regressionDynamicModel) wind(distance float64) {
	m.travel += distance
	var passes int64
	for m.travel >= SpoolWidth {
		m.travel -= SpoolWidth
		passes++
	}
	if passes == 0 {
		return
	}
	m.st.addWindPasses(passes)
	count := float64(m.st.WindCount())
	m.windFactor.assign(1-windFactorSlope*(count-1), m.st.log)
}

func (m *regressionDynamicModel) SpoolSpeedFor(feed, diameter float64) float64 {
	wf := m.windFactor.load()
	if wf <= 0 {
		return 0
	}
	return regressionSpoolSpeed(feed, diameter/wf)
}
