package twin

import "math"

// Diameter regression d = a·sqrt(feed/spool) + b fitted on run data.
const (
	regressionSlope     = 6.38896
	regressionIntercept = 0.011145
)

// Diameter variation. These are tuning assumptions rather than fitted
// values: the spread grows exponentially with diameter, and the temperature
// term widens it linearly away from a nominal 95 °C melt.
const (
	stdevScale     = 0.0042
	stdevExponent  = 1.27
	stdevTempGain  = 0.0002
	stdevTempIdeal = 95.0
)

// Heater current regression against temperature and feed load.
const (
	heaterCurrentPerDegree = 34.1
	heaterCurrentOffset    = 1188.0
	heaterCurrentFeedGain  = 130.0
	heaterCurrentFeedUnit  = 0.005
)

func regressionDiameter(feed, spool float64) float64 {
	r := ratio(feed, spool)
	if r == 0 {
		return 0
	}
	return regressionSlope*r + regressionIntercept
}

func regressionStdev(d, temp float64) float64 {
	if !(d > 0) {
		return 0
	}
	return stdevScale*math.Exp(stdevExponent*d) + stdevTempGain*math.Abs(temp-stdevTempIdeal)
}

func regressionSpoolSpeed(feed, diameter float64) float64 {
	if !(feed > 0) || !(diameter > regressionIntercept) {
		return 0
	}
	delta := diameter - regressionIntercept
	return feed * regressionSlope * regressionSlope / (delta * delta)
}

func regressionCurrents(st *State, temp, feed, spool float64) {
	heater := heaterCurrentPerDegree*temp - heaterCurrentOffset +
		heaterCurrentFeedGain*feed/heaterCurrentFeedUnit
	st.setCurrents(
		math.Max(0, heater),
		spool/MaxSpoolSpeed*spoolFullScaleCurrent,
		stepperIdleCurrent,
	)
}

type regressionStateModel struct {
	steadyState
}

func newRegressionState(st *State) *regressionStateModel {
	return &regressionStateModel{steadyState{
		st:       st,
		diameter: regressionDiameter,
		stdev:    regressionStdev,
		currents: regressionCurrents,
	}}
}

func (m *regressionStateModel) Variant() Variant { return RegressionState }

func (m *regressionStateModel) SpoolSpeedFor(feed, diameter float64) float64 {
	return regressionSpoolSpeed(feed, diameter)
}
