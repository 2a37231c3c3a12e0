package twin

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Variant selects the computation bound to a twin's state.
type Variant int

const (
	// BasicState is closed-form steady-state mass conservation.
	BasicState Variant = iota
	// RegressionState uses empirical steady-state regressions.
	RegressionState
	// RegressionDynamic adds thermal lag, spool ramps and winding-pass
	// correction to the regressions.
	RegressionDynamic
	// BasicDynamic is a first-principles heater with a growing spool.
	BasicDynamic
)

var variantNames = map[Variant]string{
	BasicState:        "basic-state",
	RegressionState:   "regression-state",
	RegressionDynamic: "regression-dynamic",
	BasicDynamic:      "basic-dynamic",
}

// Variants lists every supported variant.
func Variants() []Variant {
	return []Variant{BasicState, RegressionState, RegressionDynamic, BasicDynamic}
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant resolves a variant from its name. Matching ignores case and
// accepts underscores in place of dashes.
func ParseVariant(s string) (Variant, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for v, name := range variantNames {
		if name == norm {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if _, ok := variantNames[v]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Model computes sensor and derived values from the setpoints of the state it
// is bound to. Update never fails; degenerate inputs resolve to zero.
type Model interface {
	Variant() Variant
	// Update advances the model by elapsed. Non-positive elapsed recomputes
	// instantaneous values without integrating.
	Update(elapsed time.Duration)
	// SpoolSpeedFor returns the spool speed that yields diameter at feed
	// speed feed, or 0 when no such speed exists.
	SpoolSpeedFor(feed, diameter float64) float64
}

// Params tunes the dynamic variants.
type Params struct {
	HeatingTau      time.Duration `yaml:"heating_tau" json:"heating_tau"`
	CoolingTau      time.Duration `yaml:"cooling_tau" json:"cooling_tau"`
	SpoolAccelTau   time.Duration `yaml:"spool_accel_tau" json:"spool_accel_tau"`
	SpoolDecelTau   time.Duration `yaml:"spool_decel_tau" json:"spool_decel_tau"`
	WindFactorFloor float64       `yaml:"wind_factor_floor" json:"wind_factor_floor"`
	BasicHeaterTau  time.Duration `yaml:"basic_heater_tau" json:"basic_heater_tau"`
}

// DefaultParams returns the tuning measured on the reference apparatus.
func DefaultParams() Params {
	return Params{
		HeatingTau:      26 * time.Second,
		CoolingTau:      38500 * time.Millisecond,
		SpoolAccelTau:   800 * time.Millisecond,
		SpoolDecelTau:   1600 * time.Millisecond,
		WindFactorFloor: 0.5,
		BasicHeaterTau:  20 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.HeatingTau <= 0 {
		p.HeatingTau = d.HeatingTau
	}
	if p.CoolingTau <= 0 {
		p.CoolingTau = d.CoolingTau
	}
	if p.SpoolAccelTau <= 0 {
		p.SpoolAccelTau = d.SpoolAccelTau
	}
	if p.SpoolDecelTau <= 0 {
		p.SpoolDecelTau = d.SpoolDecelTau
	}
	if p.WindFactorFloor <= 0 || p.WindFactorFloor > 1 {
		p.WindFactorFloor = d.WindFactorFloor
	}
	if p.BasicHeaterTau <= 0 {
		p.BasicHeaterTau = d.BasicHeaterTau
	}
	return p
}

// NewModel binds the selected variant to st.
func NewModel(v Variant, st *State, params Params) (Model, error) {
	params = params.withDefaults()
	switch v {
	case BasicState:
		return newBasicState(st), nil
	case RegressionState:
		return newRegressionState(st), nil
	case RegressionDynamic:
		return newRegressionDynamic(st, params), nil
	case BasicDynamic:
		return newBasicDynamic(st, params), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, int(v))
	}
}

// approach moves prev toward target with first-order time constant tau.
func approach(prev, target float64, dt, tau time.Duration) float64 {
	if dt <= 0 {
		return prev
	}
	if tau <= 0 {
		return target
	}
	return target + (prev-target)*math.Exp(-dt.Seconds()/tau.Seconds())
}

// ratio returns sqrt(feed/spool), or 0 when either speed is not positive.
func ratio(feed, spool float64) float64 {
	if !(feed > 0) || !(spool > 0) {
		return 0
	}
	return math.Sqrt(feed / spool)
}

// setpointTracker reports heater and spool power changes between updates so
// steady-state models can re-derive the dependent values once per change and
// leave direct overrides in place otherwise.
type setpointTracker struct {
	heater, spool float64
}

func (t *setpointTracker) heaterChanged(p float64) bool {
	if p == t.heater {
		return false
	}
	t.heater = p
	return true
}

func (t *setpointTracker) spoolChanged(p float64) bool {
	if p == t.spool {
		return false
	}
	t.spool = p
	return true
}

// forgetSpool makes the next spoolChanged call report a change.
func (t *setpointTracker) forgetSpool() {
	t.spool = math.NaN()
}
