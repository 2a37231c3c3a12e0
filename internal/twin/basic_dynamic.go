package twin

import (
	"math"
	"time"
)

// Heater energy balance of the basic dynamic model.
const (
	basicDynamicMeltThreshold = 90.0
	basicHeatGain             = 0.2 * 40 // °C/s at full heater power
	basicHeatLoss             = 0.05     // 1/s toward ambient
	basicFeedCooling          = 0.001    // °C/s per Hz of feed
	// wraps of fiber laid per layer before the spool diameter grows
	basicWrapsPerLayer = 50.0
)

// Power draw of the basic dynamic model, W.
const (
	basicHeaterWatts  = 40.0
	basicIdleWatts    = 2.0
	basicFeedWattsPHz = 0.002
	basicSpoolWatts   = 24.0
)

// nozzleFlowGain is pitch·(R_fil/R_noz)², the volumetric gain from feed
// rotation to nozzle exit velocity.
var nozzleFlowGain = FeedGearPitch * (FilamentRadius * FilamentRadius) / (NozzleRadius * NozzleRadius)

// basicDynamicModel integrates a first-principles heater and lets the spool
// diameter grow by two fiber diameters per completed layer.
type basicDynamicModel struct {
	st     *State
	params Params

	spoolDiameter *bounded
	wound         float64 // mm wound on the current layer
}

func newBasicDynamic(st *State, params Params) *basicDynamicModel {
	return &basicDynamicModel{
		st:            st,
		params:        params,
		spoolDiameter: newBounded("spool_diameter", SpoolDiameter, math.Inf(1), SpoolDiameter),
	}
}

func (m *basicDynamicModel) Variant() Variant { return BasicDynamic }

func (m *basicDynamicModel) Update(elapsed time.Duration) {
	st := m.st
	log := st.log

	hp := st.HeaterPower()
	ff := st.FeedFrequency()
	sp := st.SpoolPower()

	steady := AmbientTemperature + (basicHeatGain*hp-basicFeedCooling*ff)/basicHeatLoss
	temp := st.heaterTemp.assign(approach(st.HeaterTemperature(), steady, elapsed, m.params.BasicHeaterTau), log)

	d := 0.0
	if temp > basicDynamicMeltThreshold {
		feed := st.feedSpeed.assign(ff/FeedGearConstant, log)
		spool := st.spoolSpeed.assign(MaxSpoolSpeed*sp, log)
		if feed > 0 && spool > 0 {
			dia := m.spoolDiameter.load()
			d = st.fiberDiameter.assign(2*FilamentRadius*math.Sqrt(nozzleFlowGain*feed/(dia*spool)), log)
			if elapsed > 0 && d > 0 {
				length := math.Pi * dia * spool * elapsed.Seconds()
				st.fiberLength.add(length)
				m.layer(length, d)
			}
		}
	} else {
		st.feedSpeed.assign(0, log)
		st.spoolSpeed.assign(0, log)
	}
	if d == 0 {
		st.fiberDiameter.assign(0, log)
	}
	st.diameterStdev.assign(0, log)

	kw := SupplyVoltage / 1000
	st.setCurrents(
		basicHeaterWatts*hp/kw,
		basicSpoolWatts*sp/kw,
		(basicIdleWatts+basicFeedWattsPHz*ff)/kw,
	)
}

// layer accounts length mm of fiber at diameter d against the current layer.
func (m *basicDynamicModel) layer(length, d float64) {
	m.wound += length
	for {
		dia := m.spoolDiameter.load()
		perLayer := math.Pi * dia * basicWrapsPerLayer
		if m.wound < perLayer {
			return
		}
		m.wound -= perLayer
		m.spoolDiameter.assign(dia+2*d, m.st.log)
		m.st.addWindPasses(1)
	}
}

func (m *basicDynamicModel) SpoolSpeedFor(feed, diameter float64) float64 {
	if !(feed > 0) || !(diameter > 0) {
		return 0
	}
	dia := m.spoolDiameter.load()
	g := 2 * FilamentRadius
	return feed * g * g * nozzleFlowGain / (dia * diameter * diameter)
}
