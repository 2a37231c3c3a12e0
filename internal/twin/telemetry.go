package twin

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/sebastiankruger/fiber-twin/internal/twin")

const (
	// attrVariant labels model measurements with the variant name.
	attrVariant = "variant"
	// attrField labels clamp measurements with the clamped field.
	attrField = "field"
)

var (
	// updateDuration measures one locked model step, energy accumulation
	// included.
	updateDuration metric.Float64Histogram
	// updateCount counts model steps.
	updateCount metric.Int64Counter
	// clampCount counts externally written values that fell out of bounds.
	clampCount metric.Int64Counter
)

func init() {
	var err error
	updateDuration, err = meter.Float64Histogram(
		"twin.update.duration",
		metric.WithDescription("The duration of a single model update, including energy accumulation."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("twin: failed to init 'twin.update.duration' instrument")
	}

	updateCount, err = meter.Int64Counter(
		"twin.update.count",
		metric.WithDescription("The number of model updates performed."),
	)
	if err != nil {
		panic("twin: failed to init 'twin.update.count' instrument")
	}

	clampCount, err = meter.Int64Counter(
		"twin.field.clamped",
		metric.WithDescription("The number of out-of-range field writes that were clamped."),
	)
	if err != nil {
		panic("twin: failed to init 'twin.field.clamped' instrument")
	}
}

func clampAttrs(field string) metric.AddOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String(attrField, field)))
}

// measureUpdate records the duration of one model update for variant v.
func measureUpdate(ctx context.Context, v Variant, d time.Duration) {
	attrs := metric.WithAttributeSet(attribute.NewSet(attribute.String(attrVariant, v.String())))
	updateDuration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
	updateCount.Add(ctx, 1, attrs)
}
