package twin

import (
	"math"
	"time"

	"github.com/gammazero/deque"
)

// RollingWindow is the span of simulated time covered by the rolling
// diameter statistics.
const RollingWindow = 60 * time.Second

type diameterSample struct {
	at time.Duration
	d  float64
}

// rollingStats keeps diameter samples over a sliding window of simulated time.
type rollingStats struct {
	span    time.Duration
	samples deque.Deque[diameterSample]
}

func newRollingStats(span time.Duration) *rollingStats {
	return &rollingStats{span: span}
}

// observe adds a sample taken at simulated time at and returns the mean and
// population standard deviation of the window.
func (r *rollingStats) observe(at time.Duration, d float64) (avg, stdev float64) {
	r.samples.PushBack(diameterSample{at: at, d: d})
	for r.samples.Len() > 0 && at-r.samples.Front().at > r.span {
		r.samples.PopFront()
	}

	n := float64(r.samples.Len())
	var sum float64
	for i := 0; i < r.samples.Len(); i++ {
		sum += r.samples.At(i).d
	}
	avg = sum / n
	var sq float64
	for i := 0; i < r.samples.Len(); i++ {
		dev := r.samples.At(i).d - avg
		sq += dev * dev
	}
	return avg, math.Sqrt(sq / n)
}

func (r *rollingStats) reset() {
	r.samples.Clear()
}
