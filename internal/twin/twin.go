package twin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler defaults.
const (
	DefaultUpdateInterval      = 100 * time.Millisecond
	DefaultBasicUpdateInterval = 50 * time.Millisecond
	DefaultDebugLogInterval    = time.Second

	minPollInterval = time.Millisecond
	maxPollInterval = 10 * time.Millisecond
)

// Config configures a Twin.
type Config struct {
	// ID identifies the twin in published telemetry. A zero ID is replaced
	// with a random one.
	ID      uuid.UUID
	Variant Variant
	// UpdateInterval is the minimum wall-clock time between model updates.
	// Zero selects the variant default.
	UpdateInterval time.Duration
	// DebugLogInterval is the cadence of the debug snapshot log.
	DebugLogInterval time.Duration
	Params           Params
	// Logger receives clamp diagnostics and snapshots. Nil discards them.
	Logger *zerolog.Logger
	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// Twin binds a State to a Model and drives it from a background loop using
// the true elapsed time between updates as the integration step.
type Twin struct {
	*State

	id      uuid.UUID
	variant Variant
	model   Model
	log     zerolog.Logger
	clock   func() time.Time

	// mu is held around each model update and energy accumulation.
	mu      sync.Mutex
	simTime time.Duration
	rolling *rollingStats

	startMu sync.Mutex
	running atomic.Bool
	wg      sync.WaitGroup

	updateInterval atomic.Int64
	debugInterval  atomic.Int64
	lastUpdate     atomic.Int64
	lastDebugLog   atomic.Int64
}

// New creates a twin with default state bound to cfg.Variant.
func New(cfg Config) (*Twin, error) {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("variant", cfg.Variant.String()).Logger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	t := &Twin{
		id:      id,
		variant: cfg.Variant,
		log:     log,
		clock:   clock,
		rolling: newRollingStats(RollingWindow),
	}
	t.State = NewState(&t.log)

	model, err := NewModel(cfg.Variant, t.State, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("create twin: %w", err)
	}
	t.model = model

	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
		if cfg.Variant == BasicState {
			interval = DefaultBasicUpdateInterval
		}
	}
	debug := cfg.DebugLogInterval
	if debug <= 0 {
		debug = DefaultDebugLogInterval
	}
	t.updateInterval.Store(int64(interval))
	t.debugInterval.Store(int64(debug))

	return t, nil
}

// ID returns the twin's identifier.
func (t *Twin) ID() uuid.UUID { return t.id }

// Variant returns the model variant bound to the twin.
func (t *Twin) Variant() Variant { return t.variant }

// Model returns the bound model.
func (t *Twin) Model() Model { return t.model }

// SpoolSpeedFor returns the spool speed the bound model predicts will produce
// diameter at feed speed feed.
func (t *Twin) SpoolSpeedFor(feed, diameter float64) float64 {
	return t.model.SpoolSpeedFor(feed, diameter)
}

// UpdateInterval returns the minimum time between model updates.
func (t *Twin) UpdateInterval() time.Duration {
	return time.Duration(t.updateInterval.Load())
}

// SetUpdateInterval changes the update cadence. It takes effect on the next
// loop iteration.
func (t *Twin) SetUpdateInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("update interval %v: %w", d, ErrInvalidInterval)
	}
	t.updateInterval.Store(int64(d))
	return nil
}

// DebugLogInterval returns the debug snapshot cadence.
func (t *Twin) DebugLogInterval() time.Duration {
	return time.Duration(t.debugInterval.Load())
}

// SetDebugLogInterval changes the debug snapshot cadence.
func (t *Twin) SetDebugLogInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("debug log interval %v: %w", d, ErrInvalidInterval)
	}
	t.debugInterval.Store(int64(d))
	return nil
}

// LastUpdate returns the wall-clock time of the most recent scheduled update.
func (t *Twin) LastUpdate() time.Time {
	return time.Unix(0, t.lastUpdate.Load())
}

// SimulatedTime returns the total elapsed time integrated so far.
func (t *Twin) SimulatedTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.simTime
}

// IsRunning reports whether the background loop is running or has been asked
// to run.
func (t *Twin) IsRunning() bool { return t.running.Load() }

// SetRunning starts the loop with a background context or requests a stop.
func (t *Twin) SetRunning(run bool) {
	if run {
		t.Start(context.Background())
		return
	}
	t.Stop()
}

// Start launches the background loop. It does nothing if the loop is already
// running. Cancelling ctx stops the loop like Stop.
func (t *Twin) Start(ctx context.Context) {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	if t.running.Load() {
		return
	}
	// A previous loop may still be finishing its last iteration.
	t.wg.Wait()

	now := t.clock()
	t.lastUpdate.Store(now.UnixNano())
	t.lastDebugLog.Store(now.UnixNano())
	t.running.Store(true)

	t.log.Info().
		Time("start", now).
		Dur("update_interval", t.UpdateInterval()).
		Msg("Twin started")

	t.wg.Add(1)
	go t.run(ctx)
}

// Stop requests the loop to exit. The loop observes the request within one
// poll; use Wait to block until it has exited.
func (t *Twin) Stop() {
	t.running.Store(false)
}

// Wait blocks until the background loop has exited.
func (t *Twin) Wait() {
	t.wg.Wait()
}

func (t *Twin) run(ctx context.Context) {
	defer t.wg.Done()

	poll := t.pollInterval()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for t.running.Load() {
		select {
		case <-ctx.Done():
			t.running.Store(false)
		case <-ticker.C:
			t.tick(t.clock())
			if p := t.pollInterval(); p != poll {
				poll = p
				ticker.Reset(poll)
			}
		}
	}

	t.log.Info().Time("stop", t.clock()).Msg("Twin stopped")
}

// pollInterval is a tenth of the update interval, kept within a few
// milliseconds so stop requests are observed promptly.
func (t *Twin) pollInterval() time.Duration {
	p := t.UpdateInterval() / 10
	if p < minPollInterval {
		return minPollInterval
	}
	if p > maxPollInterval {
		return maxPollInterval
	}
	return p
}

// tick runs one loop iteration at wall-clock time now.
func (t *Twin) tick(now time.Time) {
	last := time.Unix(0, t.lastUpdate.Load())
	if elapsed := now.Sub(last); elapsed >= t.UpdateInterval() {
		t.Advance(elapsed)
		t.lastUpdate.Store(now.UnixNano())
	}

	lastLog := time.Unix(0, t.lastDebugLog.Load())
	if now.Sub(lastLog) >= t.DebugLogInterval() {
		t.logSnapshot()
		t.lastDebugLog.Store(now.UnixNano())
	}
}

// Advance performs one locked model update with the given elapsed time and
// accumulates energy. It is the integration step of the background loop and
// may be called directly to drive a stopped twin deterministically.
func (t *Twin) Advance(elapsed time.Duration) {
	start := time.Now()

	t.mu.Lock()
	t.model.Update(elapsed)
	if elapsed > 0 {
		t.energy.add(t.SystemPower() * elapsed.Seconds() / 3600)
		t.simTime += elapsed
	}
	t.observeDiameter()
	t.mu.Unlock()

	measureUpdate(context.Background(), t.variant, time.Since(start))
}

// observeDiameter feeds the rolling window while fiber is being wound.
func (t *Twin) observeDiameter() {
	if t.SpoolSpeed() <= 0 {
		t.rolling.reset()
		t.rollingAvg.assign(0, &t.log)
		t.rollingStdev.assign(0, &t.log)
		return
	}
	avg, stdev := t.rolling.observe(t.simTime, t.FiberDiameter())
	t.rollingAvg.assign(avg, &t.log)
	t.rollingStdev.assign(stdev, &t.log)
}

func (t *Twin) logSnapshot() {
	t.log.Debug().
		Float64("heater_temperature", t.HeaterTemperature()).
		Float64("feed_speed", t.FeedSpeed()).
		Float64("spool_speed", t.SpoolSpeed()).
		Float64("fiber_diameter", t.FiberDiameter()).
		Float64("system_power", t.SystemPower()).
		Msg("Twin snapshot")
}
