package config

import (
	"fmt"
	"sync"
	"time"
)

// Runtime limits
const (
	MinUpdateInterval   = 1 * time.Millisecond
	MaxUpdateInterval   = 10 * time.Second
	MinDebugLogInterval = 100 * time.Millisecond
	MaxDebugLogInterval = time.Hour
	MaxNoiseLevel       = 0.1
)

// Scheduler receives interval changes. *twin.Twin satisfies it.
type Scheduler interface {
	UpdateInterval() time.Duration
	SetUpdateInterval(time.Duration) error
	DebugLogInterval() time.Duration
	SetDebugLogInterval(time.Duration) error
}

// RuntimeConfig holds configuration values that can be changed at runtime.
// All methods are thread-safe.
type RuntimeConfig struct {
	mu         sync.RWMutex
	sched      Scheduler
	noiseLevel float64 // 0.0 - 0.1 relative measurement noise
}

// NewRuntimeConfig creates a new RuntimeConfig bound to sched.
func NewRuntimeConfig(cfg *Config, sched Scheduler) *RuntimeConfig {
	return &RuntimeConfig{
		sched:      sched,
		noiseLevel: cfg.NoiseLevel,
	}
}

// GetUpdateInterval returns the scheduler's current update interval.
func (rc *RuntimeConfig) GetUpdateInterval() time.Duration {
	return rc.sched.UpdateInterval()
}

// GetDebugLogInterval returns the scheduler's current debug-log interval.
func (rc *RuntimeConfig) GetDebugLogInterval() time.Duration {
	return rc.sched.DebugLogInterval()
}

// GetNoiseLevel returns the relative measurement noise (0.0 - 0.1).
func (rc *RuntimeConfig) GetNoiseLevel() float64 {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.noiseLevel
}

// SetUpdateInterval sets the model update interval.
// Valid range: 1ms - 10s
func (rc *RuntimeConfig) SetUpdateInterval(d time.Duration) error {
	if d < MinUpdateInterval || d > MaxUpdateInterval {
		return fmt.Errorf("update interval must be between %v and %v, got %v", MinUpdateInterval, MaxUpdateInterval, d)
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.sched.SetUpdateInterval(d)
}

// SetDebugLogInterval sets the debug snapshot interval.
// Valid range: 100ms - 1h
func (rc *RuntimeConfig) SetDebugLogInterval(d time.Duration) error {
	if d < MinDebugLogInterval || d > MaxDebugLogInterval {
		return fmt.Errorf("debug log interval must be between %v and %v, got %v", MinDebugLogInterval, MaxDebugLogInterval, d)
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.sched.SetDebugLogInterval(d)
}

// SetNoiseLevel sets the relative measurement noise.
// Valid range: 0.0 - 0.1 (0% - 10%)
func (rc *RuntimeConfig) SetNoiseLevel(level float64) error {
	if level < 0.0 || level > MaxNoiseLevel {
		return fmt.Errorf("noise level must be between 0.0 and %.1f, got %f", MaxNoiseLevel, level)
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.noiseLevel = level
	return nil
}

// RuntimeConfigSnapshot is a point-in-time copy of the runtime values.
type RuntimeConfigSnapshot struct {
	UpdateInterval   time.Duration
	DebugLogInterval time.Duration
	NoiseLevel       float64
}

// Snapshot returns a point-in-time copy of all runtime config values.
func (rc *RuntimeConfig) Snapshot() RuntimeConfigSnapshot {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return RuntimeConfigSnapshot{
		UpdateInterval:   rc.sched.UpdateInterval(),
		DebugLogInterval: rc.sched.DebugLogInterval(),
		NoiseLevel:       rc.noiseLevel,
	}
}
