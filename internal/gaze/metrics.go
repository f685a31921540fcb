package gaze

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/readaid/internal/model"
)

// Fixed policy values for metric extraction.
const (
	MinSamples            = 5
	FixationRadius        = 50.0
	MinFixationDurationMs = 100
	RegressionThreshold   = 50.0
	SkipThreshold         = 200.0
	DefaultFixationMs     = 250.0
	DefaultDispersion     = 50.0
)

// DefaultMetrics is returned for sparse windows.
var DefaultMetrics = model.FixationMetrics{
	AvgFixationDurationMs: DefaultFixationMs,
	RegressionCount:       0,
	Dispersion:            DefaultDispersion,
	SkipCount:             0,
}

// Extract derives fixation metrics from an ordered window snapshot.
func Extract(samples []model.GazeSample) model.FixationMetrics {
	if len(samples) < MinSamples {
		return DefaultMetrics
	}
	return model.FixationMetrics{
		AvgFixationDurationMs: AvgFixationDuration(samples),
		RegressionCount:       CountRegressions(samples),
		Dispersion:            Dispersion(samples),
		SkipCount:             CountSkips(samples),
	}
}

// Fixations returns the durations of closed fixation clusters. A cluster
// closes when the next sample lies farther than FixationRadius from the
// previous one; the trailing open cluster is not reported.
func Fixations(samples []model.GazeSample) []float64 {
	if len(samples) < 2 {
		return nil
	}
	var durations []float64
	start := samples[0].TimestampMs
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if distance(prev, cur) <= FixationRadius {
			continue
		}
		if d := prev.TimestampMs - start; d > MinFixationDurationMs {
			durations = append(durations, float64(d))
		}
		start = cur.TimestampMs
	}
	return durations
}

// AvgFixationDuration is the mean closed fixation duration, or DefaultFixationMs.
func AvgFixationDuration(samples []model.GazeSample) float64 {
	durations := Fixations(samples)
	if len(durations) == 0 {
		return DefaultFixationMs
	}
	return stat.Mean(durations, nil)
}

// CountRegressions counts upward jumps larger than RegressionThreshold.
func CountRegressions(samples []model.GazeSample) int {
	count := 0
	for i := 1; i < len(samples); i++ {
		if samples[i-1].Y-samples[i].Y > RegressionThreshold {
			count++
		}
	}
	return count
}

// CountSkips counts consecutive jumps longer than SkipThreshold.
func CountSkips(samples []model.GazeSample) int {
	count := 0
	for i := 1; i < len(samples); i++ {
		if distance(samples[i-1], samples[i]) > SkipThreshold {
			count++
		}
	}
	return count
}

// Dispersion is the root-mean-square distance of the samples from their centroid.
func Dispersion(samples []model.GazeSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
		ys[i] = s.Y
	}
	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)
	sq := make([]float64, len(samples))
	for i := range samples {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sq[i] = dx*dx + dy*dy
	}
	return math.Sqrt(stat.Mean(sq, nil))
}

func distance(a, b model.GazeSample) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
