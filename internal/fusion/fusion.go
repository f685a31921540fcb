// Package fusion combines analysis verdicts and face signals into the
// assistance state and an emotion label.
package fusion

import (
	"math"

	"github.com/verte-zerg/readaid/internal/model"
)

// Emotion labels.
const (
	EmotionNormal   = "normal"
	EmotionCaution  = "caution"
	EmotionConfused = "confused"
)

// Classification thresholds, checked in order.
const (
	ConfusedThreshold = 0.6
	CautionThreshold  = 0.35
)

// DefaultFaceStalenessMs bounds how old a face signal may be to take part in fusion.
const DefaultFaceStalenessMs int64 = 5000

// ClassifyEmotion maps a confusion probability to a label.
func ClassifyEmotion(p float64) string {
	switch {
	case p > ConfusedThreshold:
		return EmotionConfused
	case p > CautionThreshold:
		return EmotionCaution
	default:
		return EmotionNormal
	}
}

// Decision is the outcome of applying one analysis result.
type Decision struct {
	State       model.AssistanceState
	Emotion     string
	Probability float64
	Changed     bool
}

// Engine holds the assistance state machine and the latest face signal.
type Engine struct {
	state       model.AssistanceState
	emotion     string
	face        model.FaceSignal
	hasFace     bool
	stalenessMs int64
}

// NewEngine returns an idle engine. stalenessMs <= 0 uses the latest face
// signal regardless of age.
func NewEngine(stalenessMs int64) *Engine {
	return &Engine{stalenessMs: stalenessMs, emotion: EmotionNormal}
}

// State returns the current assistance state.
func (e *Engine) State() model.AssistanceState {
	return e.state
}

// Emotion returns the most recent emotion label.
func (e *Engine) Emotion() string {
	return e.emotion
}

// UpdateFace records the latest face-based confusion probability.
func (e *Engine) UpdateFace(sig model.FaceSignal) {
	if e.hasFace && sig.TimestampMs < e.face.TimestampMs {
		return
	}
	e.face = sig
	e.hasFace = true
}

// FusedProbability combines a text-based probability with the face signal
// when it is fresh enough at nowMs.
func (e *Engine) FusedProbability(text float64, nowMs int64) float64 {
	p := clamp01(text)
	if !e.hasFace {
		return p
	}
	if e.stalenessMs > 0 && nowMs-e.face.TimestampMs > e.stalenessMs {
		return p
	}
	return math.Max(p, clamp01(e.face.Probability))
}

// Apply folds a current (non-stale) analysis result into the state.
func (e *Engine) Apply(result model.AnalysisResult, regionID string, nowMs int64) Decision {
	prev := e.state
	p := e.FusedProbability(result.ConfusionProbability, nowMs)
	e.emotion = ClassifyEmotion(p)
	if result.NeedsAssistance {
		e.state = model.AssistanceState{
			Kind:           model.AssistanceSuggesting,
			Explanation:    result.Explanation,
			SimplifiedText: result.SimplifiedText,
			RegionID:       regionID,
		}
	} else {
		e.state = model.AssistanceState{Kind: model.AssistanceIdle}
	}
	return Decision{State: e.state, Emotion: e.emotion, Probability: p, Changed: e.state != prev}
}

// Dismiss moves a suggestion to Dismissed. It reports whether the state changed.
func (e *Engine) Dismiss() bool {
	if e.state.Kind != model.AssistanceSuggesting {
		return false
	}
	e.state = model.AssistanceState{Kind: model.AssistanceDismissed, RegionID: e.state.RegionID}
	return true
}

// OnDwell clears a dismissal when the reader moves to a new region.
func (e *Engine) OnDwell() bool {
	if e.state.Kind != model.AssistanceDismissed {
		return false
	}
	e.state = model.AssistanceState{Kind: model.AssistanceIdle}
	return true
}

// Reset returns to Idle when the region the state refers to is gone.
// It reports whether the state changed.
func (e *Engine) Reset() bool {
	if e.state.Kind == model.AssistanceIdle {
		return false
	}
	e.state = model.AssistanceState{Kind: model.AssistanceIdle}
	return true
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
