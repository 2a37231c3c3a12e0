// Package firmware emulates the serial protocol of the apparatus controller
// board on top of a twin.
package firmware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownCommand is returned for a line whose leading letter is not a
	// known command.
	ErrUnknownCommand = errors.New("firmware: unknown command")
	// ErrMalformedCommand is returned when a command's parameter is missing or
	// not a number.
	ErrMalformedCommand = errors.New("firmware: malformed command")
	// ErrMalformedReading is returned when a query response line cannot be
	// parsed.
	ErrMalformedReading = errors.New("firmware: malformed reading")
)

// Op is the single-letter command selector.
type Op byte

const (
	OpQuery    Op = 'D' // request a reading line
	OpHeater   Op = 'H' // heater power fraction
	OpFeed     Op = 'F' // feed stepper frequency, Hz
	OpFeedDir  Op = 'f' // feed direction, 0 forward / 1 reverse
	OpSpool    Op = 'P' // spool power fraction
	OpSpoolDir Op = 'p' // spool direction, 0 forward / 1 reverse
	OpWind     Op = 'W' // traverse stepper frequency, pulses/s
	OpWindDir  Op = 'w' // traverse direction, 0 left / 1 right
	OpInit     Op = 'I' // reset traverse state
	OpStop     Op = 'S' // stop every actuator
)

// Command is one parsed command line.
type Command struct {
	Op    Op
	Value float64
}

// ParseCommand parses a single command line without its terminator.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrMalformedCommand)
	}

	op := Op(line[0])
	arg := strings.TrimSpace(line[1:])
	switch op {
	case OpQuery, OpInit, OpStop:
		return Command{Op: op}, nil
	case OpHeater, OpFeed, OpSpool, OpWind:
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
		}
		return Command{Op: op, Value: v}, nil
	case OpFeedDir, OpSpoolDir, OpWindDir:
		if arg != "0" && arg != "1" {
			return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
		}
		return Command{Op: op, Value: float64(arg[0] - '0')}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}
}

// String formats the command the way the host controller sends it, without
// the line terminator.
func (c Command) String() string {
	switch c.Op {
	case OpHeater:
		return fmt.Sprintf("H%.4f", c.Value)
	case OpFeed:
		return fmt.Sprintf("F%.4f", c.Value)
	case OpSpool, OpWind:
		return fmt.Sprintf("%c%.3f", c.Op, c.Value)
	case OpFeedDir, OpSpoolDir, OpWindDir:
		return fmt.Sprintf("%c%d", c.Op, int(c.Value))
	default:
		return string(rune(c.Op))
	}
}
