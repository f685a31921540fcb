package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/readaid/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// SparklineRange renders a sparkline on a fixed [minVal, maxVal] scale.
func SparklineRange(values []float64, minVal, maxVal float64) string {
	if len(values) == 0 || !(maxVal > minVal) {
		return ""
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Resample reduces values to at most width points by averaging buckets.
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// RenderSummary prints session totals.
func RenderSummary(w io.Writer, report Report) error {
	t := report.Totals
	if t.Regions == 0 {
		_, err := fmt.Fprintln(w, "No regions were read.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Session: %s", report.SessionID),
		fmt.Sprintf("Regions read: %d", t.Regions),
		fmt.Sprintf("Visits: %d", t.Visits),
		fmt.Sprintf("Total dwell: %.1fs", float64(t.DwellMs)/1000),
		fmt.Sprintf("Avg dwell per region: %.0f ms (sd %.0f)", t.MeanDwellMs, t.StdDevDwellMs),
		fmt.Sprintf("Analyses: %d", t.Dispatches),
		fmt.Sprintf("Assistance triggers: %d", t.Triggers),
		fmt.Sprintf("Avg confusion: %.2f", t.MeanConfusion),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderRegionTable prints per-region totals in reading order.
func RenderRegionTable(w io.Writer, regions []model.RegionSummary) error {
	if len(regions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Region"); err != nil {
		return err
	}
	headers := []string{"Region", "Dwell (ms)", "Visits", "Analyses", "Triggers", "Confusion"}
	rows := make([][]string, 0, len(regions))
	for _, r := range regions {
		confusion := "-"
		if r.Dispatches > 0 {
			confusion = fmt.Sprintf("%.2f", r.ConfusionProbability)
		}
		rows = append(rows, []string{
			r.RegionID,
			fmt.Sprintf("%d", r.DwellMs),
			fmt.Sprintf("%d", r.Visits),
			fmt.Sprintf("%d", r.Dispatches),
			fmt.Sprintf("%d", r.Triggers),
			confusion,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderConfusionCurve prints the smoothed confusion probability of every
// analysis as a sparkline no wider than width. width <= 0 uses the terminal width.
func RenderConfusionCurve(w io.Writer, probabilities []float64, window, width int) error {
	if len(probabilities) == 0 {
		return nil
	}
	if width <= 0 {
		width = terminalWidth()
	}
	label := "Confusion "
	width -= len(label) + 2
	if width < minCurveWidth {
		width = minCurveWidth
	}
	values := Resample(MovingAverage(probabilities, window), width)
	_, err := fmt.Fprintf(w, "%s[%s]\n", label, SparklineRange(values, 0, 1))
	return err
}
