// Package simulate runs scenarios against twins in simulated time, without
// the wall-clock scheduler.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog/log"

	"github.com/sebastiankruger/fiber-twin/internal/config"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Sample is the twin state at one point of simulated time.
type Sample struct {
	Variant       twin.Variant `json:"variant" yaml:"variant"`
	Time          float64      `json:"t_s" yaml:"t_s"`
	twin.Snapshot `yaml:",inline"`
}

// Result is the sampled trajectory of one run.
type Result struct {
	Variant twin.Variant `yaml:"variant"`
	Samples []Sample     `yaml:"samples"`
}

// Run plays sc against a fresh twin of variant, recording a sample every
// sampleEvery of simulated time and once at the end. A non-positive
// sampleEvery records every step.
func Run(ctx context.Context, sc *config.Scenario, variant twin.Variant, sampleEvery time.Duration) (Result, error) {
	if sc.Step <= 0 {
		return Result{}, fmt.Errorf("scenario step must be positive, got %v", sc.Step)
	}
	tw, err := twin.New(twin.Config{Variant: variant, Params: sc.Params})
	if err != nil {
		return Result{}, err
	}
	if sampleEvery < sc.Step {
		sampleEvery = sc.Step
	}

	steps := int64(sc.Duration / sc.Step)
	res := Result{Variant: variant, Samples: make([]Sample, 0, int(sc.Duration/sampleEvery)+2)}
	record := func(at time.Duration) {
		res.Samples = append(res.Samples, Sample{Variant: variant, Time: at.Seconds(), Snapshot: tw.Snapshot()})
	}

	next := 0
	var nextSample time.Duration
	for i := int64(0); i < steps; i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return res, ctx.Err()
		}
		at := time.Duration(i) * sc.Step
		for next < len(sc.Schedule) && sc.Schedule[next].At <= at {
			sc.Schedule[next].Apply(tw)
			next++
		}
		if at >= nextSample {
			record(at)
			nextSample += sampleEvery
		}
		tw.Advance(sc.Step)
	}
	record(time.Duration(steps) * sc.Step)
	return res, nil
}

// RunAll plays sc against every variant concurrently using at most workers
// goroutines. Results are returned in the order of variants.
func RunAll(ctx context.Context, sc *config.Scenario, variants []twin.Variant, sampleEvery time.Duration, workers int) ([]Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(variants))
	errs := make([]error, len(variants))
	wp := workerpool.New(workers)
	for i, v := range variants {
		wp.Submit(func() {
			start := time.Now()
			results[i], errs[i] = Run(ctx, sc, v, sampleEvery)
			log.Debug().
				Str("variant", v.String()).
				Int("samples", len(results[i].Samples)).
				Dur("took", time.Since(start)).
				Msg("Scenario run finished")
		})
	}
	wp.StopWait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", variants[i], err)
		}
	}
	return results, nil
}
