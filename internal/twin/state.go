package twin

import (
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// State holds the setpoints, sensor values and accumulators of one twin.
//
// Every accessor is safe to call from any goroutine. Accessors are not
// serialized with the scheduler's model update, so a setpoint written while an
// update is in progress may or may not be seen by that update.
type State struct {
	log *zerolog.Logger

	// actuator setpoints
	feedFrequency *bounded
	heaterPower   *bounded
	spoolPower    *bounded
	windDirection atomic.Int32

	// sensor and derived values
	fiberDiameter  *bounded
	diameterStdev  *bounded
	feedSpeed      *bounded
	heaterCurrent  *bounded
	heaterTemp     *bounded
	spoolCurrent   *bounded
	spoolSpeed     *bounded
	stepperCurrent *bounded
	systemPower    *bounded
	windCount      atomic.Int64

	// accumulators
	energy       *bounded
	fiberLength  *bounded
	rollingAvg   *bounded
	rollingStdev *bounded
}

// NewState returns a state with every field at its documented default.
// A nil logger discards diagnostics.
func NewState(log *zerolog.Logger) *State {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	inf := math.Inf(1)
	s := &State{
		log: log,

		feedFrequency: newBounded("feed_frequency", MinFeedFrequency, MaxFeedFrequency, 0),
		heaterPower:   newBounded("heater_power", 0, 1, 0),
		spoolPower:    newBounded("spool_power", 0, 1, 0),

		fiberDiameter:  newBounded("fiber_diameter", 0, MaxFiberDiameter, 0),
		diameterStdev:  newBounded("fiber_diameter_stdev", 0, inf, 0),
		feedSpeed:      newBounded("feed_speed", MinFeedSpeed, MaxFeedSpeed, 0),
		heaterCurrent:  newBounded("heater_current", 0, inf, 0),
		heaterTemp:     newBounded("heater_temperature", MinHeaterTemp, MaxHeaterTemp, AmbientTemperature),
		spoolCurrent:   newBounded("spool_current", 0, inf, 0),
		spoolSpeed:     newBounded("spool_speed", MinSpoolSpeed, MaxSpoolSpeed, 0),
		stepperCurrent: newBounded("stepper_current", 0, inf, 0),
		systemPower:    newBounded("system_power", 0, inf, 0),

		energy:       newBounded("system_energy", 0, inf, 0),
		fiberLength:  newBounded("fiber_length", 0, inf, 0),
		rollingAvg:   newBounded("rolling_diameter_avg", 0, MaxFiberDiameter, 0),
		rollingStdev: newBounded("rolling_diameter_stdev", 0, inf, 0),
	}
	s.windCount.Store(1)
	return s
}

// FeedFrequency returns the feed stepper drive frequency in Hz.
func (s *State) FeedFrequency() float64 { return s.feedFrequency.load() }

// SetFeedFrequency sets the feed stepper drive frequency, clamped to [0, 100] Hz.
func (s *State) SetFeedFrequency(hz float64) float64 { return s.feedFrequency.set(hz, s.log) }

// HeaterPower returns the heater power fraction.
func (s *State) HeaterPower() float64 { return s.heaterPower.load() }

// SetHeaterPower sets the heater power fraction, clamped to [0, 1].
func (s *State) SetHeaterPower(p float64) float64 { return s.heaterPower.set(p, s.log) }

// SpoolPower returns the spool motor power fraction.
func (s *State) SpoolPower() float64 { return s.spoolPower.load() }

// SetSpoolPower sets the spool motor power fraction, clamped to [0, 1].
func (s *State) SetSpoolPower(p float64) float64 { return s.spoolPower.set(p, s.log) }

// WindDirection returns the winding traverse direction, 0 or 1.
func (s *State) WindDirection() int { return int(s.windDirection.Load()) }

// SetWindDirection sets the winding traverse direction. Values other than
// 0 and 1 resolve to the nearest of the two.
func (s *State) SetWindDirection(dir int) int {
	applied := 0
	if dir > 0 {
		applied = 1
	}
	if applied != dir {
		s.log.Info().
			Str("field", "wind_direction").
			Int("requested", dir).
			Int("applied", applied).
			Msg("wind_direction must be 0 or 1")
	}
	s.windDirection.Store(int32(applied))
	return applied
}

// FiberDiameter returns the extruded fiber diameter in mm.
func (s *State) FiberDiameter() float64 { return s.fiberDiameter.load() }

// SetFiberDiameter overrides the fiber diameter until the next model update,
// clamped to [0, 2×NozzleRadius].
func (s *State) SetFiberDiameter(mm float64) float64 { return s.fiberDiameter.set(mm, s.log) }

// FiberDiameterStdev returns the modelled diameter standard deviation in mm.
func (s *State) FiberDiameterStdev() float64 { return s.diameterStdev.load() }

// FeedSpeed returns the feed speed in rotations per second.
func (s *State) FeedSpeed() float64 { return s.feedSpeed.load() }

// SetFeedSpeed sets the feed speed, clamped to [0, 0.031] rps, and derives the
// feed frequency from it.
func (s *State) SetFeedSpeed(rps float64) float64 {
	applied := s.feedSpeed.set(rps, s.log)
	s.feedFrequency.set(applied*FeedGearConstant, s.log)
	return applied
}

// HeaterCurrent returns the heater current draw in mA.
func (s *State) HeaterCurrent() float64 { return s.heaterCurrent.load() }

// HeaterTemperature returns the heater temperature in °C.
func (s *State) HeaterTemperature() float64 { return s.heaterTemp.load() }

// SetHeaterTemperature sets the heater temperature, clamped to [20, 120] °C.
func (s *State) SetHeaterTemperature(c float64) float64 { return s.heaterTemp.set(c, s.log) }

// SpoolCurrent returns the spool motor current draw in mA.
func (s *State) SpoolCurrent() float64 { return s.spoolCurrent.load() }

// SpoolSpeed returns the spool speed in rotations per second.
func (s *State) SpoolSpeed() float64 { return s.spoolSpeed.load() }

// SetSpoolSpeed sets the spool speed, clamped to [0, 1.5] rps.
func (s *State) SetSpoolSpeed(rps float64) float64 { return s.spoolSpeed.set(rps, s.log) }

// StepperCurrent returns the stepper and electronics current draw in mA.
func (s *State) StepperCurrent() float64 { return s.stepperCurrent.load() }

// SystemPower returns the instantaneous system power in W.
func (s *State) SystemPower() float64 { return s.systemPower.load() }

// WindCount returns the number of winding passes, starting at 1.
func (s *State) WindCount() int64 { return s.windCount.Load() }

// SystemEnergy returns the cumulative system energy in Wh.
func (s *State) SystemEnergy() float64 { return s.energy.load() }

// FiberLength returns the cumulative wound fiber length in mm.
func (s *State) FiberLength() float64 { return s.fiberLength.load() }

// RollingDiameterAvg returns the rolling-window average fiber diameter in mm.
func (s *State) RollingDiameterAvg() float64 { return s.rollingAvg.load() }

// RollingDiameterStdev returns the rolling-window fiber diameter standard
// deviation in mm.
func (s *State) RollingDiameterStdev() float64 { return s.rollingStdev.load() }

func (s *State) addWindPasses(n int64) {
	if n > 0 {
		s.windCount.Add(n)
	}
}

// setCurrents writes the electrical readings and the resulting system power.
func (s *State) setCurrents(heater, spool, stepper float64) {
	h := s.heaterCurrent.assign(heater, s.log)
	sp := s.spoolCurrent.assign(spool, s.log)
	st := s.stepperCurrent.assign(stepper, s.log)
	s.systemPower.assign((h+sp+st)*SupplyVoltage/1000, s.log)
}

// Snapshot is a point-in-time copy of every field of a State.
type Snapshot struct {
	FeedFrequency        float64 `json:"feed_frequency_hz" yaml:"feed_frequency_hz"`
	HeaterPower          float64 `json:"heater_power" yaml:"heater_power"`
	SpoolPower           float64 `json:"spool_power" yaml:"spool_power"`
	WindDirection        int     `json:"wind_direction" yaml:"wind_direction"`
	FiberDiameter        float64 `json:"fiber_diameter_mm" yaml:"fiber_diameter_mm"`
	FiberDiameterStdev   float64 `json:"fiber_diameter_stdev_mm" yaml:"fiber_diameter_stdev_mm"`
	FeedSpeed            float64 `json:"feed_speed_rps" yaml:"feed_speed_rps"`
	HeaterCurrent        float64 `json:"heater_current_ma" yaml:"heater_current_ma"`
	HeaterTemperature    float64 `json:"heater_temperature_c" yaml:"heater_temperature_c"`
	SpoolCurrent         float64 `json:"spool_current_ma" yaml:"spool_current_ma"`
	SpoolSpeed           float64 `json:"spool_speed_rps" yaml:"spool_speed_rps"`
	StepperCurrent       float64 `json:"stepper_current_ma" yaml:"stepper_current_ma"`
	SystemPower          float64 `json:"system_power_w" yaml:"system_power_w"`
	WindCount            int64   `json:"wind_count" yaml:"wind_count"`
	SystemEnergy         float64 `json:"system_energy_wh" yaml:"system_energy_wh"`
	FiberLength          float64 `json:"fiber_length_mm" yaml:"fiber_length_mm"`
	RollingDiameterAvg   float64 `json:"rolling_diameter_avg_mm" yaml:"rolling_diameter_avg_mm"`
	RollingDiameterStdev float64 `json:"rolling_diameter_stdev_mm" yaml:"rolling_diameter_stdev_mm"`
}

// Snapshot copies every field. Fields are read one at a time, so a snapshot
// taken outside the scheduler lock may straddle a model update.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		FeedFrequency:        s.FeedFrequency(),
		HeaterPower:          s.HeaterPower(),
		SpoolPower:           s.SpoolPower(),
		WindDirection:        s.WindDirection(),
		FiberDiameter:        s.FiberDiameter(),
		FiberDiameterStdev:   s.FiberDiameterStdev(),
		FeedSpeed:            s.FeedSpeed(),
		HeaterCurrent:        s.HeaterCurrent(),
		HeaterTemperature:    s.HeaterTemperature(),
		SpoolCurrent:         s.SpoolCurrent(),
		SpoolSpeed:           s.SpoolSpeed(),
		StepperCurrent:       s.StepperCurrent(),
		SystemPower:          s.SystemPower(),
		WindCount:            s.WindCount(),
		SystemEnergy:         s.SystemEnergy(),
		FiberLength:          s.FiberLength(),
		RollingDiameterAvg:   s.RollingDiameterAvg(),
		RollingDiameterStdev: s.RollingDiameterStdev(),
	}
}
