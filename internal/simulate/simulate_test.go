package simulate

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sebastiankruger/fiber-twin/internal/config"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

func TestRunBasicPreset(t *testing.T) {
	sc := config.GetPreset("basic")
	require.NotNil(t, sc)

	res, err := Run(context.Background(), sc, twin.BasicState, time.Second)
	require.NoError(t, err)
	require.Len(t, res.Samples, 61)

	first, last := res.Samples[0], res.Samples[len(res.Samples)-1]
	assert.Zero(t, first.Time)
	assert.Equal(t, 0.3, first.HeaterPower, "schedule entries at zero apply before the first sample")
	assert.Equal(t, 60.0, last.Time)
	assert.Greater(t, last.FiberDiameter, 0.0)
	assert.InEpsilon(t, math.Pi*twin.SpoolDiameter*0.6*60, last.FiberLength, 1e-9)
}

func TestRunAppliesScheduleInOrder(t *testing.T) {
	sc := config.GetPreset("cooldown")
	require.NoError(t, sc.Validate())

	res, err := Run(context.Background(), sc, twin.RegressionDynamic, 30*time.Second)
	require.NoError(t, err)

	var peak float64
	for _, s := range res.Samples {
		if s.Time < 180 {
			assert.Equal(t, 0.35, s.HeaterPower)
			peak = math.Max(peak, s.HeaterTemperature)
		} else if s.Time > 180 {
			assert.Zero(t, s.HeaterPower)
		}
	}
	last := res.Samples[len(res.Samples)-1]
	assert.Less(t, last.HeaterTemperature, peak, "heater cools after power is removed")
}

func TestRunRejectsZeroStep(t *testing.T) {
	_, err := Run(context.Background(), &config.Scenario{Duration: time.Second}, twin.BasicState, 0)
	assert.Error(t, err)
}

func TestRunAllKeepsVariantOrder(t *testing.T) {
	sc := config.GetPreset("extrude")
	sc.Duration = 30 * time.Second

	variants := twin.Variants()
	results, err := RunAll(context.Background(), sc, variants, 5*time.Second, 2)
	require.NoError(t, err)
	require.Len(t, results, len(variants))
	for i, r := range results {
		assert.Equal(t, variants[i], r.Variant)
		require.NotEmpty(t, r.Samples)
		for _, s := range r.Samples {
			assert.Equal(t, variants[i], s.Variant)
		}
	}
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunAll(ctx, config.GetPreset("warmup"), []twin.Variant{twin.RegressionDynamic}, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	sc := config.GetPreset("basic")
	sc.Duration = 2 * time.Second
	res, err := Run(context.Background(), sc, twin.BasicState, time.Second)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Result{res}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+len(res.Samples))
	assert.Equal(t, csvHeader, rows[0])
	for _, row := range rows[1:] {
		assert.Len(t, row, len(csvHeader))
		assert.Equal(t, "basic-state", row[0])
	}
	assert.Equal(t, "2", rows[len(rows)-1][1])
}

func TestWriteYAML(t *testing.T) {
	sc := config.GetPreset("layered")
	sc.Duration = 3 * time.Second
	res, err := Run(context.Background(), sc, twin.BasicDynamic, time.Second)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, []Result{res}))
	assert.Contains(t, buf.String(), "variant: basic-dynamic")
	assert.Contains(t, buf.String(), "heater_temperature_c:")

	var back []Result
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, res, back[0])
}
