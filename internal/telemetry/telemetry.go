// Package telemetry streams twin snapshots to message brokers and accepts
// controller commands from them.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Envelope is one published telemetry record.
type Envelope struct {
	TwinID        uuid.UUID     `json:"twin_id"`
	Variant       twin.Variant  `json:"variant"`
	Timestamp     time.Time     `json:"timestamp"`
	SimulatedTime float64       `json:"simulated_time_s"`
	State         twin.Snapshot `json:"state"`
}

// Key returns the partition key of the envelope.
func (e Envelope) Key() string { return e.TwinID.String() }

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return b, nil
}

// Source is the twin surface sampled for telemetry.
type Source interface {
	ID() uuid.UUID
	Variant() twin.Variant
	SimulatedTime() time.Duration
	Snapshot() twin.Snapshot
}

// Publisher delivers envelopes to one destination.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// NewEnvelope samples src at now.
func NewEnvelope(src Source, now time.Time) Envelope {
	return Envelope{
		TwinID:        src.ID(),
		Variant:       src.Variant(),
		Timestamp:     now.UTC(),
		SimulatedTime: src.SimulatedTime().Seconds(),
		State:         src.Snapshot(),
	}
}

// Run publishes a snapshot of src to every publisher each interval until ctx
// is cancelled. Publish failures are logged and do not stop the loop.
func Run(ctx context.Context, src Source, interval time.Duration, pubs ...Publisher) error {
	if interval <= 0 {
		return fmt.Errorf("publish interval must be positive, got %v", interval)
	}
	if len(pubs) == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", interval).
		Int("publishers", len(pubs)).
		Msg("Telemetry started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Telemetry stopped")
			return nil
		case now := <-ticker.C:
			env := NewEnvelope(src, now)
			for _, p := range pubs {
				if err := p.Publish(ctx, env); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Str("twin", env.Key()).Msg("Failed to publish telemetry")
				}
			}
		}
	}
}
