package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min, max float64
		want     float64
	}{
		{"below", -1, 0, 1, 0},
		{"above", 2, 0, 1, 1},
		{"inside", 0.4, 0, 1, 0.4},
		{"at min", 0, 0, 1, 0},
		{"at max", 1, 0, 1, 1},
		{"nan", math.NaN(), 20, 120, 20},
		{"positive infinity", math.Inf(1), 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.value, tt.min, tt.max))
		})
	}
}

func TestClampPositive(t *testing.T) {
	assert.Equal(t, 0.0, ClampPositive(-3))
	assert.Equal(t, 0.0, ClampPositive(math.NaN()))
	assert.Equal(t, 2.5, ClampPositive(2.5))
}

func TestNoiseGeneratorDeterministicForSeed(t *testing.T) {
	a := NewNoiseGenerator(42)
	b := NewNoiseGenerator(42)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.GaussianNoiseWithClamp(100, 0.01, 0, 200), b.GaussianNoiseWithClamp(100, 0.01, 0, 200))
	}
}

func TestGaussianNoiseWithClampStaysInBounds(t *testing.T) {
	ng := NewNoiseGenerator(7)
	for i := 0; i < 1000; i++ {
		v := ng.GaussianNoiseWithClamp(119, 0.5, 20, 120)
		assert.GreaterOrEqual(t, v, 20.0)
		assert.LessOrEqual(t, v, 120.0)
	}
}

func TestColoredNoiseFullSmoothingHoldsTarget(t *testing.T) {
	ng := NewNoiseGenerator(1)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 50.0, ng.ColoredNoise("temp", 50, 0.1, 1))
	}
}

func TestColoredNoiseIsCorrelated(t *testing.T) {
	ng := NewNoiseGenerator(3)
	prev := ng.ColoredNoise("temp", 100, 0.01, 0.9) - 100
	for i := 0; i < 50; i++ {
		dev := ng.ColoredNoise("temp", 100, 0.01, 0.9) - 100
		// each step moves at most (1-alpha) of a white-noise draw
		assert.InDelta(t, 0.9*prev, dev, 0.1*0.01*100*6)
		prev = dev
	}

	// keys keep independent state
	assert.Equal(t, 10.0, ng.ColoredNoise("current", 10, 0, 0.9))
}

func TestOPCUADataTypeDefaultsToDouble(t *testing.T) {
	assert.Equal(t, OPCUADataType(DataTypeDouble), OPCUADataType(DataType(99)))
	assert.Equal(t, "Int32", DataTypeInt32.String())
}
