package core

import (
	"math"
	"math/rand"
	"sync"
)

// NoiseGenerator provides utilities for generating realistic sensor noise.
// It is safe for concurrent use.
type NoiseGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand

	// State for colored/correlated noise
	coloredNoiseState map[string]float64
}

// NewNoiseGenerator creates a new noise generator seeded with seed
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	return &NoiseGenerator{
		rng:               rand.New(rand.NewSource(seed)),
		coloredNoiseState: make(map[string]float64),
	}
}

// GaussianNoiseWithClamp returns Gaussian noise scaled by a percentage of the
// target value, clamped to min/max values
func (ng *NoiseGenerator) GaussianNoiseWithClamp(target, noisePercent, min, max float64) float64 {
	ng.mu.Lock()
	value := target + ng.rng.NormFloat64()*(math.Abs(target)*noisePercent)
	ng.mu.Unlock()
	return Clamp(value, min, max)
}

// ColoredNoise generates noise with temporal correlation (smooth transitions)
// keyed per signal. alpha: smoothing factor (0 = pure white noise, 1 =
// constant value)
func (ng *NoiseGenerator) ColoredNoise(key string, target, noisePercent, alpha float64) float64 {
	ng.mu.Lock()
	defer ng.mu.Unlock()

	prevState := ng.coloredNoiseState[key]
	whiteNoise := ng.rng.NormFloat64() * noisePercent * target

	// Exponential smoothing
	newState := alpha*prevState + (1-alpha)*whiteNoise
	ng.coloredNoiseState[key] = newState

	return target + newState
}

// ClampPositive ensures a value is non-negative
func ClampPositive(value float64) float64 {
	if value < 0 || math.IsNaN(value) {
		return 0
	}
	return value
}

// Clamp ensures a value is within bounds. NaN resolves to min.
func Clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
