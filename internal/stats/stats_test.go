package stats

import "testing"

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4}, 2)
	want := []float64{1, 1.5, 2.5, 3.5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestSparklineRangeIsFixedScale(t *testing.T) {
	if got := SparklineRange([]float64{0, 0.5, 1}, 0, 1); got != " +@" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := SparklineRange([]float64{1}, 1, 1); got != "" {
		t.Fatalf("expected empty sparkline for empty range, got %q", got)
	}
}

func TestResample(t *testing.T) {
	got := Resample([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected resample %v", got)
	}
	if got := Resample([]float64{1, 2}, 10); len(got) != 2 {
		t.Fatalf("expected no upsampling, got %v", got)
	}
}
