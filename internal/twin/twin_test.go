package twin

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastiankruger/fiber-twin/internal/core"
)

// manualClock is a settable clock for driving tick deterministically.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Add(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func TestNewDefaults(t *testing.T) {
	tw := newTestTwin(t, RegressionDynamic)
	assert.Equal(t, DefaultUpdateInterval, tw.UpdateInterval())
	assert.Equal(t, DefaultDebugLogInterval, tw.DebugLogInterval())
	assert.Equal(t, RegressionDynamic, tw.Variant())
	assert.Equal(t, RegressionDynamic, tw.Model().Variant())
	assert.NotEqual(t, uuid.Nil, tw.ID())
	assert.False(t, tw.IsRunning())

	basic := newTestTwin(t, BasicState)
	assert.Equal(t, DefaultBasicUpdateInterval, basic.UpdateInterval())

	id := uuid.New()
	tw, err := New(Config{ID: id, Variant: BasicDynamic, UpdateInterval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, id, tw.ID())
	assert.Equal(t, time.Second, tw.UpdateInterval())
}

func TestSetIntervalsRejectNonPositive(t *testing.T) {
	tw := newTestTwin(t, BasicState)

	assert.ErrorIs(t, tw.SetUpdateInterval(0), ErrInvalidInterval)
	assert.ErrorIs(t, tw.SetDebugLogInterval(-time.Second), ErrInvalidInterval)
	assert.Equal(t, DefaultBasicUpdateInterval, tw.UpdateInterval())

	require.NoError(t, tw.SetUpdateInterval(20*time.Millisecond))
	require.NoError(t, tw.SetDebugLogInterval(5*time.Second))
	assert.Equal(t, 20*time.Millisecond, tw.UpdateInterval())
	assert.Equal(t, 5*time.Second, tw.DebugLogInterval())
}

func TestAdvanceAccumulatesEnergy(t *testing.T) {
	tw := newTestTwin(t, BasicState)
	tw.SetHeaterPower(0.5)
	tw.Advance(0)

	power := 0.012 * (0.5*heaterFullScaleCurrent + stepperIdleCurrent)
	require.InDelta(t, power, tw.SystemPower(), 1e-9)

	tw.Advance(36 * time.Second)
	assert.InDelta(t, power*36/3600, tw.SystemEnergy(), 1e-9)
}

func TestTickUsesTrueElapsedTime(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	tw, err := New(Config{Variant: RegressionDynamic, Clock: clock.Now})
	require.NoError(t, err)
	tw.lastUpdate.Store(clock.Now().UnixNano())
	tw.lastDebugLog.Store(clock.Now().UnixNano())

	tw.tick(clock.Add(50 * time.Millisecond))
	assert.Zero(t, tw.SimulatedTime(), "no update before the interval elapses")

	now := clock.Add(100 * time.Millisecond)
	tw.tick(now)
	assert.Equal(t, 150*time.Millisecond, tw.SimulatedTime())
	assert.WithinDuration(t, now, tw.LastUpdate(), 0)

	tw.tick(clock.Add(370 * time.Millisecond))
	assert.Equal(t, 520*time.Millisecond, tw.SimulatedTime())
}

func TestTickLogsSnapshot(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	tw, err := New(Config{Variant: BasicState, Logger: &log, Clock: clock.Now})
	require.NoError(t, err)
	tw.lastUpdate.Store(clock.Now().UnixNano())
	tw.lastDebugLog.Store(clock.Now().UnixNano())

	tw.tick(clock.Add(500 * time.Millisecond))
	assert.NotContains(t, buf.String(), "Twin snapshot")

	tw.tick(clock.Add(500 * time.Millisecond))
	out := buf.String()
	assert.Contains(t, out, "Twin snapshot")
	assert.Contains(t, out, `"variant":"basic-state"`)
	assert.Contains(t, out, `"heater_temperature":20`)
}

func TestStartStop(t *testing.T) {
	tw, err := New(Config{Variant: RegressionState, UpdateInterval: 100 * time.Millisecond})
	require.NoError(t, err)
	tw.SetHeaterPower(0.5)

	tw.Start(context.Background())
	assert.True(t, tw.IsRunning())

	require.Eventually(t, func() bool { return tw.SystemEnergy() > 0 },
		2*time.Second, 10*time.Millisecond)

	stopped := time.Now()
	tw.Stop()
	tw.Wait()
	assert.Less(t, time.Since(stopped), tw.UpdateInterval())
	assert.False(t, tw.IsRunning())

	energy := tw.SystemEnergy()
	time.Sleep(3 * tw.UpdateInterval())
	assert.Equal(t, energy, tw.SystemEnergy(), "no updates after stop")
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	tw, err := New(Config{Variant: BasicState, UpdateInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	tw.Start(context.Background())
	tw.Start(context.Background())
	tw.SetRunning(true)
	assert.True(t, tw.IsRunning())

	tw.SetRunning(false)
	tw.Wait()
	assert.False(t, tw.IsRunning())

	tw.Start(context.Background())
	assert.True(t, tw.IsRunning())
	tw.Stop()
	tw.Wait()
}

func TestStartStopsOnContextCancel(t *testing.T) {
	tw := newTestTwin(t, BasicDynamic)
	ctx, cancel := context.WithCancel(context.Background())
	tw.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		tw.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after cancel")
	}
	assert.False(t, tw.IsRunning())
}

func TestConcurrentAccessWhileRunning(t *testing.T) {
	tw, err := New(Config{Variant: RegressionDynamic, UpdateInterval: time.Millisecond})
	require.NoError(t, err)
	tw.Start(context.Background())
	defer func() {
		tw.Stop()
		tw.Wait()
	}()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tw.SetHeaterPower(float64(i%10) / 10)
				tw.SetFeedFrequency(float64(w * i % 120))
				tw.SetSpoolPower(float64(i%7) / 6)
				_ = tw.Snapshot()
				_ = tw.GenerateData()
			}
		}(w)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, tw.WindCount(), int64(1))
}

func TestRollingStats(t *testing.T) {
	r := newRollingStats(10 * time.Second)

	avg, stdev := r.observe(0, 1)
	assert.Equal(t, 1.0, avg)
	assert.Zero(t, stdev)

	avg, stdev = r.observe(5*time.Second, 3)
	assert.Equal(t, 2.0, avg)
	assert.Equal(t, 1.0, stdev)

	// The first sample is now older than the window.
	avg, stdev = r.observe(12*time.Second, 3)
	assert.Equal(t, 3.0, avg)
	assert.Zero(t, stdev)

	r.reset()
	avg, _ = r.observe(13*time.Second, 0.5)
	assert.Equal(t, 0.5, avg)
}

func TestRollingStatsResetWhenSpoolStops(t *testing.T) {
	tw := newTestTwin(t, RegressionState)
	tw.SetHeaterPower(0.3)
	tw.SetFeedFrequency(50)
	tw.SetSpoolPower(0.5)
	for i := 0; i < 10; i++ {
		tw.Advance(100 * time.Millisecond)
	}
	require.Greater(t, tw.RollingDiameterAvg(), 0.0)

	tw.SetSpoolPower(0)
	tw.SetSpoolSpeed(0)
	tw.Advance(100 * time.Millisecond)
	assert.Zero(t, tw.RollingDiameterAvg())
	assert.Zero(t, tw.RollingDiameterStdev())
}

func TestNodesMatchGeneratedData(t *testing.T) {
	tw := newTestTwin(t, RegressionDynamic)
	data := tw.GenerateData()
	nodes := tw.GetOPCUANodes()
	require.Len(t, data, len(nodes))

	for _, n := range nodes {
		v, ok := data[n.Name]
		require.True(t, ok, n.Name)
		assert.IsType(t, n.InitialValue, v, n.Name)

		switch n.DataType {
		case core.DataTypeDouble:
			assert.IsType(t, float64(0), v, n.Name)
		case core.DataTypeInt32:
			assert.IsType(t, int32(0), v, n.Name)
		case core.DataTypeInt64:
			assert.IsType(t, int64(0), v, n.Name)
		case core.DataTypeString:
			assert.IsType(t, "", v, n.Name)
		case core.DataTypeBool:
			assert.IsType(t, false, v, n.Name)
		}
	}
	assert.Equal(t, "regression-dynamic", data["Variant"])
}
