// Package gaze holds the gaze history window and the fixation metrics derived from it.
package gaze

import "github.com/verte-zerg/readaid/internal/model"

// DefaultWindowMs is the default history horizon.
const DefaultWindowMs int64 = 30000

// Window is a time-bounded store of gaze samples in insertion order.
// It is owned by a single session and is not safe for concurrent use.
type Window struct {
	horizonMs int64
	latest    int64
	hasLatest bool
	samples   []model.GazeSample
}

// NewWindow returns a window with the given horizon. Non-positive horizons use DefaultWindowMs.
func NewWindow(horizonMs int64) *Window {
	if horizonMs <= 0 {
		horizonMs = DefaultWindowMs
	}
	return &Window{horizonMs: horizonMs}
}

// Insert appends a sample and prunes everything outside the horizon of the
// latest timestamp seen so far.
func (w *Window) Insert(sample model.GazeSample) {
	if !w.hasLatest || sample.TimestampMs > w.latest {
		w.latest = sample.TimestampMs
		w.hasLatest = true
	}
	w.samples = append(w.samples, sample)
	w.prune()
}

func (w *Window) prune() {
	kept := w.samples[:0]
	for _, s := range w.samples {
		if w.latest-s.TimestampMs < w.horizonMs {
			kept = append(kept, s)
		}
	}
	w.samples = kept
}

// Snapshot returns a copy of the retained samples.
func (w *Window) Snapshot() []model.GazeSample {
	out := make([]model.GazeSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return len(w.samples)
}
