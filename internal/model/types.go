// Package model defines shared data structures.
package model

import "time"

// Config defines reading-session settings.
type Config struct {
	WindowMs        int64
	FaceStalenessMs int64
	ServiceURL      string
	ServiceTimeout  time.Duration
	Fallback        FallbackMode
	SendFaceFrames  bool
	CacheEnabled    bool
}

// FallbackMode selects what happens when the inference service fails.
type FallbackMode string

// Fallback modes. FallbackNone leaves the assistance state untouched.
const (
	FallbackNone   FallbackMode = "none"
	FallbackCache  FallbackMode = "cache"
	FallbackCanned FallbackMode = "canned"
)

// GazeSample is a single screen-space gaze point.
type GazeSample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TimestampMs int64   `json:"timestamp_ms"`
	Confidence  float64 `json:"confidence"`
}

// Point is a 2-D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextRegion is a rendered text span in document/page coordinates.
type TextRegion struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Centroid returns the center of the region's bounding box.
func (r TextRegion) Centroid() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// PageGeometry describes the document page and how it is currently rendered.
type PageGeometry struct {
	PageWidth      float64 `json:"page_width"`
	PageHeight     float64 `json:"page_height"`
	RenderedWidth  float64 `json:"rendered_width"`
	RenderedHeight float64 `json:"rendered_height"`
	OffsetX        float64 `json:"offset_x"`
	OffsetY        float64 `json:"offset_y"`
}

// RegionSnapshot is what the text-region source supplies per render.
type RegionSnapshot struct {
	Regions []TextRegion `json:"regions"`
	Page    PageGeometry `json:"page"`
}

// FixationMetrics summarizes a gaze window.
type FixationMetrics struct {
	AvgFixationDurationMs float64 `json:"avg_fixation_duration_ms"`
	RegressionCount       int     `json:"regression_count"`
	Dispersion            float64 `json:"dispersion"`
	SkipCount             int     `json:"skip_count"`
}

// FaceSignal is an instantaneous face-based confusion estimate.
type FaceSignal struct {
	Probability float64 `json:"probability"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// FaceFrame is a pre-extracted facial landmark set.
type FaceFrame struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Landmarks   []Point `json:"landmarks"`
}

// AnalysisRequest is the payload sent to the inference service.
type AnalysisRequest struct {
	Text               string           `json:"text"`
	ReadingTimeSeconds float64          `json:"reading_time_seconds"`
	GazeMetrics        *FixationMetrics `json:"gaze_metrics,omitempty"`
	FaceFrames         []FaceFrame      `json:"face_frames,omitempty"`
}

// AnalysisResult is the inference service verdict.
type AnalysisResult struct {
	DifficultyScore      float64 `json:"difficulty_score"`
	ConfusionProbability float64 `json:"confusion_probability"`
	NeedsAssistance      bool    `json:"needs_assistance"`
	Explanation          string  `json:"explanation"`
	SimplifiedText       string  `json:"simplified_text,omitempty"`
}

// AssistanceKind tags the assistance state variant.
type AssistanceKind int

// Assistance state variants.
const (
	AssistanceIdle AssistanceKind = iota
	AssistanceSuggesting
	AssistanceDismissed
)

func (k AssistanceKind) String() string {
	switch k {
	case AssistanceSuggesting:
		return "suggesting"
	case AssistanceDismissed:
		return "dismissed"
	default:
		return "idle"
	}
}

// AssistanceState is the externally observable output of the pipeline.
type AssistanceState struct {
	Kind           AssistanceKind
	Explanation    string
	SimplifiedText string
	RegionID       string
}

// Highlight is a document-space box together with its page size.
type Highlight struct {
	PageWidth  float64
	PageHeight float64
	X          float64
	Y          float64
	Width      float64
	Height     float64
}

// Size is a pixel size reported by the renderer.
type Size struct {
	Width  float64
	Height float64
}

// PixelBox is an on-screen rectangle.
type PixelBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RegionSummary aggregates dwell and analysis outcomes for one region.
type RegionSummary struct {
	RegionID             string
	DwellMs              int64
	Visits               int
	Dispatches           int
	Triggers             int
	ConfusionProbability float64
}
