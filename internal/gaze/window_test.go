package gaze

import (
	"testing"

	"github.com/verte-zerg/readaid/internal/model"
)

func TestWindowPrunesRelativeToLatestSample(t *testing.T) {
	w := NewWindow(1000)
	for _, ts := range []int64{0, 400, 800, 1000, 1500} {
		w.Insert(model.GazeSample{TimestampMs: ts})
	}
	snap := w.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 samples, got %d: %+v", len(snap), snap)
	}
	if snap[0].TimestampMs != 800 || snap[2].TimestampMs != 1500 {
		t.Fatalf("unexpected retained samples: %+v", snap)
	}
}

func TestWindowInvariantHoldsForAllInserts(t *testing.T) {
	w := NewWindow(0)
	ts := []int64{0, 100, 29999, 30000, 15000, 45000, 10, 60000, 59000, 90001}
	for _, v := range ts {
		w.Insert(model.GazeSample{TimestampMs: v})
		latest := w.latest
		for _, s := range w.Snapshot() {
			if latest-s.TimestampMs >= DefaultWindowMs {
				t.Fatalf("sample %d outside horizon of %d", s.TimestampMs, latest)
			}
		}
	}
}

func TestWindowKeepsInsertionOrder(t *testing.T) {
	w := NewWindow(1000)
	w.Insert(model.GazeSample{X: 1, TimestampMs: 500})
	w.Insert(model.GazeSample{X: 2, TimestampMs: 300})
	w.Insert(model.GazeSample{X: 3, TimestampMs: 700})
	snap := w.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(snap))
	}
	for i, want := range []float64{1, 2, 3} {
		if snap[i].X != want {
			t.Fatalf("expected insertion order, got %+v", snap)
		}
	}
}

func TestWindowDropsStaleOutOfOrderSample(t *testing.T) {
	w := NewWindow(1000)
	w.Insert(model.GazeSample{TimestampMs: 5000})
	w.Insert(model.GazeSample{TimestampMs: 3000})
	if w.Len() != 1 {
		t.Fatalf("expected stale sample to be pruned immediately, got %d samples", w.Len())
	}
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	w := NewWindow(1000)
	w.Insert(model.GazeSample{X: 1, TimestampMs: 1})
	snap := w.Snapshot()
	snap[0].X = 99
	if w.Snapshot()[0].X != 1 {
		t.Fatalf("snapshot mutation leaked into window")
	}
}
