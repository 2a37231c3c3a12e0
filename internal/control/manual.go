package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Controller defaults.
const (
	DefaultInterval       = 100 * time.Millisecond
	DefaultHeaterInterval = 500 * time.Millisecond
	DefaultSpoolInterval  = 250 * time.Millisecond

	// FeedEnableTemperature is the heater temperature at which the
	// controller starts feeding filament.
	FeedEnableTemperature = 75.0

	windTraverseGain = 600 * 6.732
)

// Default loop gains.
var (
	DefaultHeaterGains = Gains{Kp: 0.02, Ki: 0.00005}
	DefaultSpoolGains  = Gains{Kp: 0.1, Ki: 0.5}
)

// Gains holds PID coefficients.
type Gains struct {
	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`
}

// Mode selects how the controller drives its plant.
type Mode int

const (
	// ModeDynamic drives heater and spool power, optionally through PID
	// loops closed on heater temperature and spool speed.
	ModeDynamic Mode = iota
	// ModeState writes heater temperature and spool speed directly, for the
	// steady-state variants.
	ModeState
)

// Plant is the process the controller acts on. *twin.Twin satisfies it.
type Plant interface {
	HeaterTemperature() float64
	SpoolSpeed() float64
	FeedSpeed() float64
	SetHeaterPower(float64) float64
	SetSpoolPower(float64) float64
	SetFeedFrequency(float64) float64
	SetHeaterTemperature(float64) float64
	SetSpoolSpeed(float64) float64
	SpoolSpeedFor(feed, diameter float64) float64
}

// Targets are the operator setpoints of a Manual controller.
type Targets struct {
	HeaterPower       float64 `json:"heater_power"`
	HeaterTemperature float64 `json:"heater_temperature_c"`
	SpoolPower        float64 `json:"spool_power"`
	SpoolSpeed        float64 `json:"spool_speed_rps"`
	FeedSpeed         float64 `json:"feed_speed_rps"`
	FiberDiameter     float64 `json:"fiber_diameter_mm"`
}

// ManualConfig configures a Manual controller.
type ManualConfig struct {
	Mode           Mode
	Interval       time.Duration
	HeaterInterval time.Duration
	SpoolInterval  time.Duration
	HeaterGains    *Gains
	SpoolGains     *Gains
	Logger         *zerolog.Logger
	Clock          func() time.Time
}

// Manual applies operator targets to a plant on its own cadence, closing
// optional PID loops on heater temperature and spool speed.
type Manual struct {
	plant Plant
	mode  Mode
	log   zerolog.Logger
	clock func() time.Time

	interval       time.Duration
	heaterInterval time.Duration
	spoolInterval  time.Duration

	mu         sync.Mutex
	targets    Targets
	heaterPID  *PID
	spoolPID   *PID
	heaterOn   bool
	spoolOn    bool
	calcSpool  bool
	lastHeater time.Time
	lastSpool  time.Time
}

// NewManual creates a controller for plant.
func NewManual(plant Plant, cfg ManualConfig) *Manual {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "controller").Logger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	hg, sg := DefaultHeaterGains, DefaultSpoolGains
	if cfg.HeaterGains != nil {
		hg = *cfg.HeaterGains
	}
	if cfg.SpoolGains != nil {
		sg = *cfg.SpoolGains
	}
	m := &Manual{
		plant:          plant,
		mode:           cfg.Mode,
		log:            log,
		clock:          clock,
		interval:       orDefault(cfg.Interval, DefaultInterval),
		heaterInterval: orDefault(cfg.HeaterInterval, DefaultHeaterInterval),
		spoolInterval:  orDefault(cfg.SpoolInterval, DefaultSpoolInterval),
		heaterPID:      NewPID(hg.Kp, hg.Ki, hg.Kd),
		spoolPID:       NewPID(sg.Kp, sg.Ki, sg.Kd),
		targets:        Targets{HeaterTemperature: twin.AmbientTemperature},
	}
	m.spoolPID.MaxStep = 0.5
	return m
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Targets returns a copy of the current targets.
func (m *Manual) Targets() Targets {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targets
}

// SetTargets replaces the targets, clamping each to its physical range.
func (m *Manual) SetTargets(t Targets) {
	t.HeaterPower = clampTarget(t.HeaterPower, 0, 1)
	t.HeaterTemperature = clampTarget(t.HeaterTemperature, twin.MinHeaterTemp, twin.MaxHeaterTemp)
	t.SpoolPower = clampTarget(t.SpoolPower, 0, 1)
	t.SpoolSpeed = clampTarget(t.SpoolSpeed, twin.MinSpoolSpeed, twin.MaxSpoolSpeed)
	t.FeedSpeed = clampTarget(t.FeedSpeed, twin.MinFeedSpeed, twin.MaxFeedSpeed)
	t.FiberDiameter = clampTarget(t.FiberDiameter, 0, twin.MaxFiberDiameter)

	m.mu.Lock()
	m.targets = t
	m.mu.Unlock()
}

func clampTarget(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// EnableHeaterPID switches the heater between the temperature loop and the
// raw power target.
func (m *Manual) EnableHeaterPID(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on && !m.heaterOn {
		m.heaterPID.Reset(m.plant.HeaterTemperature())
		m.heaterPID.IntegralMin = 0
		m.lastHeater = m.clock()
	}
	m.heaterOn = on
	m.log.Info().Bool("enabled", on).Msg("Heater PID")
}

// EnableSpoolPID switches the spool between the speed loop and the raw
// power target.
func (m *Manual) EnableSpoolPID(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on && !m.spoolOn {
		m.spoolPID.Reset(m.plant.SpoolSpeed())
		m.spoolPID.IntegralMin = 0
		m.lastSpool = m.clock()
	}
	m.spoolOn = on
	m.log.Info().Bool("enabled", on).Msg("Spool PID")
}

// SetCalculatedSpool makes ModeState derive the spool speed from the feed
// and fiber diameter targets instead of the spool speed target.
func (m *Manual) SetCalculatedSpool(on bool) {
	m.mu.Lock()
	m.calcSpool = on
	m.mu.Unlock()
}

// WindFrequency returns the traverse pulse rate that lays one fiber width
// per spool rotation for the current spool speed target.
func (m *Manual) WindFrequency() float64 {
	m.mu.Lock()
	spool := m.targets.SpoolSpeed
	m.mu.Unlock()
	return WindFrequency(m.plant.FeedSpeed(), spool)
}

// WindFrequency returns the traverse pulse rate for the given feed and spool
// speeds in rotations per second.
func WindFrequency(feed, spool float64) float64 {
	if !(spool > 0) || !(feed > 0) {
		return 0
	}
	return windTraverseGain * spool * math.Sqrt(feed/spool)
}

// Step applies the targets once at now.
func (m *Manual) Step(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.mode {
	case ModeState:
		m.stepState()
	default:
		m.stepDynamic(now)
	}
}

func (m *Manual) stepDynamic(now time.Time) {
	t := &m.targets
	if m.heaterOn {
		if dt := now.Sub(m.lastHeater); dt >= m.heaterInterval {
			t.HeaterPower = m.heaterPID.Update(t.HeaterTemperature, m.plant.HeaterTemperature(), dt)
			m.lastHeater = now
		}
	}
	m.plant.SetHeaterPower(t.HeaterPower)

	if m.spoolOn {
		if dt := now.Sub(m.lastSpool); dt >= m.spoolInterval {
			t.SpoolPower = m.spoolPID.Update(t.SpoolSpeed, m.plant.SpoolSpeed(), dt)
			m.lastSpool = now
		}
	}
	m.plant.SetSpoolPower(t.SpoolPower)

	m.gateFeed()
}

func (m *Manual) stepState() {
	t := m.targets
	m.plant.SetHeaterTemperature(t.HeaterTemperature)
	m.gateFeed()
	if m.calcSpool {
		m.plant.SetSpoolSpeed(m.plant.SpoolSpeedFor(t.FeedSpeed, t.FiberDiameter))
		return
	}
	m.plant.SetSpoolSpeed(t.SpoolSpeed)
}

func (m *Manual) gateFeed() {
	if m.plant.HeaterTemperature() >= FeedEnableTemperature {
		m.plant.SetFeedFrequency(m.targets.FeedSpeed * twin.FeedGearConstant)
		return
	}
	m.plant.SetFeedFrequency(0)
}

// Run steps the controller every interval until ctx is cancelled.
func (m *Manual) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", m.interval).Msg("Controller started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Controller stopped")
			return
		case <-ticker.C:
			m.Step(m.clock())
		}
	}
}
