package control

import (
	"math"
	"time"
)

// minStep is the shortest interval a PID will integrate over. Shorter calls
// return the previous output unchanged.
const minStep = time.Millisecond

// PID is a positional PID controller with output clamped to [0, 1], a clamped
// integral term, a bounded change of output per call and derivative on
// measurement. It is not safe for concurrent use.
type PID struct {
	Kp, Ki, Kd float64

	// IntegralMin and IntegralMax bound the accumulated integral term.
	IntegralMin, IntegralMax float64
	// MaxStep is the largest change of output allowed per call.
	MaxStep float64

	integral     float64
	lastMeasured float64
	lastOutput   float64
}

// NewPID creates a controller with the integral bounded to [-1, 1] and no
// effective limit on output change.
func NewPID(kp, ki, kd float64) *PID {
	return &PID{
		Kp:          kp,
		Ki:          ki,
		Kd:          kd,
		IntegralMin: -1,
		IntegralMax: 1,
		MaxStep:     1,
	}
}

// Reset clears the integral and seeds the derivative with measured.
func (p *PID) Reset(measured float64) {
	p.integral = 0
	p.lastMeasured = measured
}

// Output returns the last computed output.
func (p *PID) Output() float64 { return p.lastOutput }

// Integral returns the accumulated integral term.
func (p *PID) Integral() float64 { return p.integral }

// Update advances the controller by dt and returns the new output.
func (p *PID) Update(target, measured float64, dt time.Duration) float64 {
	if dt < minStep {
		return p.lastOutput
	}
	sec := dt.Seconds()
	err := target - measured

	p.integral += p.Ki * err * sec
	p.integral = math.Min(math.Max(p.integral, p.IntegralMin), p.IntegralMax)

	derivative := -p.Kd * (measured - p.lastMeasured) / sec
	p.lastMeasured = measured

	out := p.Kp*err + p.integral + derivative
	out = math.Min(math.Max(out, 0), 1)
	if delta := out - p.lastOutput; math.Abs(delta) > p.MaxStep {
		out = p.lastOutput + math.Copysign(p.MaxStep, delta)
	}
	p.lastOutput = out
	return out
}
