package firmware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Reading is the content of one query response line.
type Reading struct {
	HeaterTemperature float64 // °C
	SpoolPPS          float64 // spool encoder pulses per second
	SpoolCurrent      float64 // mA
	HeaterCurrent     float64 // mA
	StepperCurrent    float64 // mA
	WindDirection     int
	WindCount         int64
}

// ReadingFrom maps a twin snapshot onto the reading fields.
func ReadingFrom(s twin.Snapshot) Reading {
	return Reading{
		HeaterTemperature: s.HeaterTemperature,
		SpoolPPS:          s.SpoolSpeed * twin.SpoolPulsesPerRotation,
		SpoolCurrent:      s.SpoolCurrent,
		HeaterCurrent:     s.HeaterCurrent,
		StepperCurrent:    s.StepperCurrent,
		WindDirection:     s.WindDirection,
		WindCount:         s.WindCount,
	}
}

// SpoolSpeed returns the spool speed in rotations per second.
func (r Reading) SpoolSpeed() float64 {
	return r.SpoolPPS / twin.SpoolPulsesPerRotation
}

// FormatQuery renders r as a terminated response line:
// D,<temp>,<spool_pps>,<spool_mA>,<heater_mA>,<stepper_mA>,<dir>,<count>
func FormatQuery(r Reading) string {
	return fmt.Sprintf("D,%.2f,%.1f,%.1f,%.1f,%.1f,%d,%d\r\n",
		r.HeaterTemperature, r.SpoolPPS, r.SpoolCurrent, r.HeaterCurrent,
		r.StepperCurrent, r.WindDirection, r.WindCount)
}

// ParseQuery parses a response line produced by FormatQuery.
func ParseQuery(line string) (Reading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 8 || fields[0] != "D" {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedReading, line)
	}

	var floats [5]float64
	for i := range floats {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: field %d: %v", ErrMalformedReading, i+1, err)
		}
		floats[i] = v
	}
	dir, err := strconv.Atoi(fields[6])
	if err != nil {
		return Reading{}, fmt.Errorf("%w: wind direction: %v", ErrMalformedReading, err)
	}
	count, err := strconv.ParseInt(fields[7], 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: wind count: %v", ErrMalformedReading, err)
	}

	return Reading{
		HeaterTemperature: floats[0],
		SpoolPPS:          floats[1],
		SpoolCurrent:      floats[2],
		HeaterCurrent:     floats[3],
		StepperCurrent:    floats[4],
		WindDirection:     dir,
		WindCount:         count,
	}, nil
}
