package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/verte-zerg/readaid/internal/model"
)

func sampleRegions() []model.RegionSummary {
	return []model.RegionSummary{
		{RegionID: "s1", DwellMs: 1000, Visits: 1, Dispatches: 1, Triggers: 0, ConfusionProbability: 0.2},
		{RegionID: "s2", DwellMs: 3000, Visits: 2, Dispatches: 2, Triggers: 1, ConfusionProbability: 0.82},
		{RegionID: "s3", DwellMs: 200, Visits: 1},
	}
}

func TestSummarize(t *testing.T) {
	totals := Summarize(sampleRegions(), []float64{0.2, 0.5, 0.82})
	if totals.Regions != 3 || totals.Visits != 4 || totals.Dispatches != 3 || totals.Triggers != 1 {
		t.Fatalf("unexpected counts: %+v", totals)
	}
	if totals.DwellMs != 4200 {
		t.Fatalf("expected 4200 ms dwell, got %d", totals.DwellMs)
	}
	if math.Abs(totals.MeanDwellMs-1400) > 1e-9 {
		t.Fatalf("expected mean dwell 1400, got %f", totals.MeanDwellMs)
	}
	if totals.StdDevDwellMs <= 0 {
		t.Fatalf("expected positive std dev, got %f", totals.StdDevDwellMs)
	}
	if math.Abs(totals.MeanConfusion-0.50666666) > 1e-6 {
		t.Fatalf("unexpected mean confusion %f", totals.MeanConfusion)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	totals := Summarize(nil, nil)
	if totals != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestRenderReport(t *testing.T) {
	report := BuildReport("abc", sampleRegions(), []float64{0.2, 0.5, 0.82})
	var buf bytes.Buffer
	if err := RenderSummary(&buf, report); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	if err := RenderRegionTable(&buf, report.Regions); err != nil {
		t.Fatalf("render table: %v", err)
	}
	if err := RenderConfusionCurve(&buf, report.Probabilities, 1, 40); err != nil {
		t.Fatalf("render curve: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Session: abc", "Assistance triggers: 1", "Per-Region", "Confusion [", "0.82"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "s3") || !strings.Contains(out, " -") {
		t.Fatalf("expected unanalyzed region marker:\n%s", out)
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, BuildReport("x", nil, nil)); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No regions were read." {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
