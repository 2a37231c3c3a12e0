package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"D", Command{Op: OpQuery}},
		{"I", Command{Op: OpInit}},
		{"S", Command{Op: OpStop}},
		{"H0.4500", Command{Op: OpHeater, Value: 0.45}},
		{"F49.5", Command{Op: OpFeed, Value: 49.5}},
		{"P0.310", Command{Op: OpSpool, Value: 0.31}},
		{"W120.000", Command{Op: OpWind, Value: 120}},
		{"f1", Command{Op: OpFeedDir, Value: 1}},
		{"p0", Command{Op: OpSpoolDir, Value: 0}},
		{"w1", Command{Op: OpWindDir, Value: 1}},
		{"  H1 ", Command{Op: OpHeater, Value: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrMalformedCommand},
		{"H", ErrMalformedCommand},
		{"Fabc", ErrMalformedCommand},
		{"w2", ErrMalformedCommand},
		{"f", ErrMalformedCommand},
		{"X1", ErrUnknownCommand},
		{"MS", ErrUnknownCommand},
	}
	for _, tt := range tests {
		_, err := ParseCommand(tt.line)
		assert.ErrorIs(t, err, tt.want, "line %q", tt.line)
	}
}

func TestCommandStringParsesBack(t *testing.T) {
	for _, c := range []Command{
		{Op: OpQuery},
		{Op: OpStop},
		{Op: OpHeater, Value: 0.1234},
		{Op: OpFeed, Value: 99.2},
		{Op: OpSpool, Value: 0.5},
		{Op: OpWind, Value: 240},
		{Op: OpWindDir, Value: 1},
	} {
		got, err := ParseCommand(c.String())
		require.NoError(t, err, c.String())
		assert.Equal(t, c, got)
	}
	assert.Equal(t, "H0.5000", Command{Op: OpHeater, Value: 0.5}.String())
	assert.Equal(t, "P0.310", Command{Op: OpSpool, Value: 0.31}.String())
	assert.Equal(t, "f1", Command{Op: OpFeedDir, Value: 1}.String())
}
