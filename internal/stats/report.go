// Package stats summarizes a finished reading session.
package stats

import (
	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/readaid/internal/model"
)

// Report contains precomputed data for summary rendering.
type Report struct {
	SessionID     string
	Regions       []model.RegionSummary
	Probabilities []float64
	Totals        Totals
}

// Totals aggregates across regions.
type Totals struct {
	Regions       int
	Visits        int
	Dispatches    int
	Triggers      int
	DwellMs       int64
	MeanDwellMs   float64
	StdDevDwellMs float64
	MeanConfusion float64
}

// BuildReport prepares a report from session totals.
func BuildReport(sessionID string, regions []model.RegionSummary, probabilities []float64) Report {
	return Report{
		SessionID:     sessionID,
		Regions:       regions,
		Probabilities: probabilities,
		Totals:        Summarize(regions, probabilities),
	}
}

// Summarize computes totals. Dwell statistics cover visited regions only.
func Summarize(regions []model.RegionSummary, probabilities []float64) Totals {
	t := Totals{Regions: len(regions)}
	dwells := make([]float64, 0, len(regions))
	for _, r := range regions {
		t.Visits += r.Visits
		t.Dispatches += r.Dispatches
		t.Triggers += r.Triggers
		t.DwellMs += r.DwellMs
		dwells = append(dwells, float64(r.DwellMs))
	}
	if len(dwells) > 0 {
		t.MeanDwellMs = stat.Mean(dwells, nil)
	}
	if len(dwells) > 1 {
		t.StdDevDwellMs = stat.StdDev(dwells, nil)
	}
	if len(probabilities) > 0 {
		t.MeanConfusion = stat.Mean(probabilities, nil)
	}
	return t
}
