package firmware

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sebastiankruger/fiber-twin/internal/core"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// maxLineLength bounds a single command line.
const maxLineLength = 256

// thermocoupleSmoothing correlates successive temperature noise samples so
// readings drift instead of jumping.
const thermocoupleSmoothing = 0.8

// Target is the twin surface driven by a session.
type Target interface {
	Snapshot() twin.Snapshot
	SetHeaterPower(float64) float64
	SetFeedFrequency(float64) float64
	SetSpoolPower(float64) float64
	SetWindDirection(int) int
}

// Session answers the controller protocol for one connection.
type Session struct {
	target Target
	noise  *core.NoiseGenerator
	level  func() float64

	mu       sync.Mutex
	feedDir  int
	spoolDir int
	windFreq float64
}

// Option configures a Session.
type Option func(*Session)

// WithNoise adds measurement noise to reported readings: correlated noise on
// temperature, Gaussian noise on currents. level returns the relative noise and is read on every query.
func WithNoise(ng *core.NoiseGenerator, level func() float64) Option {
	return func(s *Session) {
		s.noise = ng
		s.level = level
	}
}

// NewSession creates a session driving target.
func NewSession(target Target, opts ...Option) *Session {
	s := &Session{target: target}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FeedDirection returns the last commanded feed direction.
func (s *Session) FeedDirection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedDir
}

// SpoolDirection returns the last commanded spool direction.
func (s *Session) SpoolDirection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spoolDir
}

// WindFrequency returns the last commanded traverse frequency.
func (s *Session) WindFrequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windFreq
}

// Handle applies cmd to the target. Queries return the response line; every
// other command returns an empty string.
func (s *Session) Handle(cmd Command) string {
	switch cmd.Op {
	case OpQuery:
		return FormatQuery(s.measure(ReadingFrom(s.target.Snapshot())))
	case OpHeater:
		s.target.SetHeaterPower(cmd.Value)
	case OpFeed:
		s.target.SetFeedFrequency(cmd.Value)
	case OpSpool:
		s.target.SetSpoolPower(cmd.Value)
	case OpWindDir:
		s.target.SetWindDirection(int(cmd.Value))
	case OpFeedDir:
		s.mu.Lock()
		s.feedDir = int(cmd.Value)
		s.mu.Unlock()
	case OpSpoolDir:
		s.mu.Lock()
		s.spoolDir = int(cmd.Value)
		s.mu.Unlock()
	case OpWind:
		s.mu.Lock()
		s.windFreq = math.Max(0, cmd.Value)
		s.mu.Unlock()
	case OpInit:
		s.mu.Lock()
		s.windFreq = 0
		s.mu.Unlock()
		s.target.SetWindDirection(0)
	case OpStop:
		s.target.SetHeaterPower(0)
		s.target.SetFeedFrequency(0)
		s.target.SetSpoolPower(0)
		s.mu.Lock()
		s.windFreq = 0
		s.mu.Unlock()
		log.Info().Msg("Stop command received - actuators off")
	}
	return ""
}

func (s *Session) measure(r Reading) Reading {
	if s.noise == nil || s.level == nil {
		return r
	}
	level := s.level()
	if level <= 0 {
		return r
	}
	inf := math.Inf(1)
	r.HeaterTemperature = core.ClampPositive(
		s.noise.ColoredNoise("heater_temperature", r.HeaterTemperature, level, thermocoupleSmoothing))
	r.SpoolCurrent = s.noise.GaussianNoiseWithClamp(r.SpoolCurrent, level, 0, inf)
	r.HeaterCurrent = s.noise.GaussianNoiseWithClamp(r.HeaterCurrent, level, 0, inf)
	r.StepperCurrent = s.noise.GaussianNoiseWithClamp(r.StepperCurrent, level, 0, inf)
	return r
}

// Serve reads commands from rw until EOF or ctx is cancelled, answering
// queries on rw. Malformed, unknown and overlong commands are logged and
// skipped. When rw is an io.Closer it is closed on cancellation to unblock
// the read.
func (s *Session) Serve(ctx context.Context, rw io.ReadWriter) error {
	if c, ok := rw.(io.Closer); ok {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-done:
			}
		}()
	}

	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, maxLineLength), maxLineLength)
	scanner.Split((&commandSplitter{}).split)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("Ignoring command")
			continue
		}
		if reply := s.Handle(cmd); reply != "" {
			if _, err := io.WriteString(rw, reply); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

// commandSplitter splits on either line terminator so "\r", "\n" and "\r\n"
// all end a command. Lines longer than maxLineLength are dropped up to the
// next terminator.
type commandSplitter struct {
	discarding bool
}

func (c *commandSplitter) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := bytes.IndexAny(data, "\r\n")
	if c.discarding {
		if i < 0 {
			return len(data), nil, nil
		}
		c.discarding = false
		return i + 1, nil, nil
	}
	if i >= maxLineLength {
		log.Warn().Int("length", i).Msg("Ignoring overlong command")
		return i + 1, nil, nil
	}
	if i >= 0 {
		return i + 1, data[:i], nil
	}
	if len(data) >= maxLineLength {
		log.Warn().Int("limit", maxLineLength).Msg("Ignoring overlong command")
		c.discarding = true
		return len(data), nil, nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
