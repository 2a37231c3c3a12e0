package twin

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sebastiankruger/fiber-twin/internal/core"
)

// bounded is a float64 field that is clamped to [min, max] on every write.
// Loads and stores are individually atomic; a field is never observed
// half-written, but consecutive accesses to different fields are not
// coordinated with one another.
type bounded struct {
	name     string
	min, max float64
	bits     atomic.Uint64
}

func newBounded(name string, min, max, initial float64) *bounded {
	b := &bounded{name: name, min: min, max: max}
	b.bits.Store(math.Float64bits(core.Clamp(initial, min, max)))
	return b
}

func (b *bounded) load() float64 {
	return math.Float64frombits(b.bits.Load())
}

// set is the external write path: out-of-range values are clamped and a
// diagnostic is emitted at info level.
func (b *bounded) set(v float64, log *zerolog.Logger) float64 {
	applied := core.Clamp(v, b.min, b.max)
	if applied != v {
		log.Info().
			Str("field", b.name).
			Float64("requested", v).
			Float64("applied", applied).
			Msgf("%s must be within [%g, %g]", b.name, b.min, b.max)
		clampCount.Add(context.Background(), 1, clampAttrs(b.name))
	}
	b.bits.Store(math.Float64bits(applied))
	return applied
}

// assign is the model write path. Models saturate routinely, so clamping is
// only reported at debug level.
func (b *bounded) assign(v float64, log *zerolog.Logger) float64 {
	applied := core.Clamp(v, b.min, b.max)
	if applied != v {
		log.Debug().
			Str("field", b.name).
			Float64("computed", v).
			Float64("applied", applied).
			Msg("Model output clamped")
	}
	b.bits.Store(math.Float64bits(applied))
	return applied
}

// add increments an accumulator. Negative and NaN increments are dropped so the
// accumulator never decreases.
func (b *bounded) add(delta float64) {
	if !(delta > 0) || math.IsInf(delta, 0) {
		return
	}
	for {
		old := b.bits.Load()
		next := core.Clamp(math.Float64frombits(old)+delta, b.min, b.max)
		if b.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}
