// Package session ties the reading pipeline together for one reader.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/readaid/internal/dispatch"
	"github.com/verte-zerg/readaid/internal/fusion"
	"github.com/verte-zerg/readaid/internal/gaze"
	"github.com/verte-zerg/readaid/internal/inference"
	"github.com/verte-zerg/readaid/internal/metrics"
	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/region"
	"github.com/verte-zerg/readaid/internal/tracker"
)

// maxFaceFrames caps the landmark frames attached to one request.
const maxFaceFrames = 30

// Analyzer performs one analysis round trip.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error)
}

// Cache stores successful results for the cache fallback mode.
type Cache interface {
	LookupResult(ctx context.Context, text string) (model.AnalysisResult, bool, error)
	PutResult(ctx context.Context, text string, res model.AnalysisResult) error
}

// Options configures a session.
type Options struct {
	Config   model.Config
	Analyzer Analyzer
	// Cache is optional. When set, successful results are stored and the
	// cache fallback mode can reuse them.
	Cache   Cache
	Regions model.RegionSnapshot
	Logger  zerolog.Logger
}

// Session owns every piece of mutable pipeline state for one reader. Its
// Handle methods must be called from a single goroutine; Run does that.
type Session struct {
	id     string
	cfg    model.Config
	logger zerolog.Logger

	window     *gaze.Window
	mapper     *region.Mapper
	tracker    *tracker.Tracker
	sched      *dispatch.Scheduler
	dispatcher *dispatch.Dispatcher
	fusion     *fusion.Engine
	faceFrames []model.FaceFrame
	summary    *summary

	analyzer Analyzer
	cache    Cache

	ctx        context.Context
	cancel     context.CancelFunc
	responses  chan dispatch.Response
	dismissals chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	observers []Observer
	last      Update
	published bool

	regionUpdates <-chan model.RegionSnapshot
	lastSampleMs  int64
	lastSampleAt  time.Time
	hasSample     bool
	wallNow       func() time.Time
}

// New creates a session and registers it as active.
func New(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	logger := opts.Logger.With().Str("component", "session").Str("session", id).Logger()
	s := &Session{
		id:         id,
		cfg:        opts.Config,
		logger:     logger,
		window:     gaze.NewWindow(opts.Config.WindowMs),
		mapper:     region.NewMapper(opts.Regions),
		tracker:    tracker.New(),
		sched:      dispatch.NewScheduler(),
		fusion:     fusion.NewEngine(opts.Config.FaceStalenessMs),
		summary:    newSummary(),
		analyzer:   opts.Analyzer,
		cache:      opts.Cache,
		ctx:        ctx,
		cancel:     cancel,
		responses:  make(chan dispatch.Response, 16),
		dismissals: make(chan struct{}, 1),
		wallNow:    time.Now,
	}
	s.dispatcher = dispatch.NewDispatcher(s.sched, s, s, logger)
	metrics.ActiveSessions.Inc()
	logger.Debug().Int("regions", s.mapper.Index().Len()).Msg("session started")
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Responses delivers analysis outcomes to be passed to HandleResponse.
func (s *Session) Responses() <-chan dispatch.Response {
	return s.responses
}

// SetRegionUpdates makes Run apply snapshots received on ch.
func (s *Session) SetRegionUpdates(ch <-chan model.RegionSnapshot) {
	s.regionUpdates = ch
}

// State returns the current assistance state.
func (s *Session) State() model.AssistanceState {
	return s.fusion.State()
}

// Now returns the session clock in milliseconds.
func (s *Session) Now() int64 {
	return s.sched.Now()
}

// InFlight returns the number of analysis calls awaiting a response.
func (s *Session) InFlight() int {
	return s.dispatcher.InFlight()
}

// Close cancels outstanding analysis calls and waits for them to return.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.dispatcher.Cancel()
		metrics.ActiveSessions.Dec()
		s.logger.Debug().Msg("session closed")
	})
}

// HandleGaze feeds one gaze sample through the pipeline.
func (s *Session) HandleGaze(sample model.GazeSample) {
	s.Advance(sample.TimestampMs)
	s.lastSampleMs = s.sched.Now()
	s.lastSampleAt = s.wallNow()
	s.hasSample = true

	s.window.Insert(sample)
	metrics.GazeSamples.Inc()

	now := s.sched.Now()
	r, ok := s.mapper.Map(sample)
	tr := s.tracker.Observe(r.ID, ok, now)
	if tr.Entered {
		metrics.DwellTransitions.Inc()
		s.summary.enter(tr.RegionID, now)
		s.logger.Debug().
			Str("region", tr.RegionID).
			Str("previous", tr.Previous).
			Uint64("token", tr.Token).
			Msg("dwell entered")
		if s.fusion.OnDwell() {
			metrics.AssistanceTransitions.WithLabelValues(model.AssistanceIdle.String()).Inc()
		}
		s.dispatcher.OnDwell(r, tr.Token)
	}
	s.publish()
}

// HandleFace records a face-based confusion estimate.
func (s *Session) HandleFace(sig model.FaceSignal) {
	s.fusion.UpdateFace(sig)
}

// HandleFaceFrame buffers a landmark frame for the next request.
func (s *Session) HandleFaceFrame(frame model.FaceFrame) {
	s.faceFrames = append(s.faceFrames, frame)
	if len(s.faceFrames) > maxFaceFrames {
		s.faceFrames = append(s.faceFrames[:0], s.faceFrames[len(s.faceFrames)-maxFaceFrames:]...)
	}
}

// HandleRegions replaces the region index. If the region being read is gone,
// the dwell is reset, any analysis for it is abandoned and a suggestion or
// dismissal for it returns to Idle.
func (s *Session) HandleRegions(snap model.RegionSnapshot) {
	s.mapper.Replace(snap)
	if id, _, ok := s.tracker.Current(); ok {
		if _, found := s.mapper.Index().Lookup(id); !found {
			s.dispatcher.Cancel()
			s.tracker.Reset()
			s.summary.leave(s.sched.Now())
			s.logger.Debug().Str("region", id).Msg("current region removed, dwell reset")
		}
	}
	if st := s.fusion.State(); st.Kind != model.AssistanceIdle {
		if _, found := s.mapper.Index().Lookup(st.RegionID); !found && s.fusion.Reset() {
			metrics.AssistanceTransitions.WithLabelValues(model.AssistanceIdle.String()).Inc()
		}
	}
	s.logger.Debug().Int("regions", s.mapper.Index().Len()).Msg("regions replaced")
	s.publish()
}

// RequestDismiss asks Run to dismiss the suggestion. Safe for concurrent use.
func (s *Session) RequestDismiss() {
	select {
	case s.dismissals <- struct{}{}:
	default:
	}
}

// Dismiss closes a visible suggestion. Scheduled analysis is unaffected.
func (s *Session) Dismiss() {
	if s.fusion.Dismiss() {
		metrics.AssistanceTransitions.WithLabelValues(model.AssistanceDismissed.String()).Inc()
		s.logger.Debug().Msg("suggestion dismissed")
	}
	s.publish()
}

// Advance moves the session clock and fires due dispatches.
func (s *Session) Advance(nowMs int64) {
	if s.sched.Advance(nowMs) > 0 {
		s.publish()
	}
}

// BuildRequest assembles the analysis payload at dispatch time.
func (s *Session) BuildRequest(r model.TextRegion, nowMs int64) model.AnalysisRequest {
	m := gaze.Extract(s.window.Snapshot())
	s.logger.Debug().Str("region", r.ID).Int("samples", s.window.Len()).Msg("building analysis request")
	req := model.AnalysisRequest{
		Text:               r.Text,
		ReadingTimeSeconds: float64(s.tracker.DwellMs(nowMs)) / 1000,
		GazeMetrics:        &m,
	}
	if s.cfg.SendFaceFrames && len(s.faceFrames) > 0 {
		req.FaceFrames = append([]model.FaceFrame(nil), s.faceFrames...)
	}
	return req
}

// Send runs the analysis call on its own goroutine.
func (s *Session) Send(req dispatch.Request) {
	metrics.AnalysisDispatches.Inc()
	s.summary.dispatched(req.RegionID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		res, err := s.analyzer.Analyze(s.ctx, req.Payload)
		metrics.AnalysisLatency.Observe(time.Since(start).Seconds())
		resp := dispatch.Response{
			Token:    req.Token,
			RegionID: req.RegionID,
			Payload:  req.Payload,
			Result:   res,
			Err:      err,
		}
		select {
		case s.responses <- resp:
		case <-s.ctx.Done():
		}
	}()
}

// HandleResponse reconciles one analysis outcome with the current state.
func (s *Session) HandleResponse(resp dispatch.Response) {
	defer s.publish()
	if !s.dispatcher.Complete(resp, s.tracker.Token()) {
		metrics.AnalysisResults.WithLabelValues(metrics.OutcomeStale).Inc()
		return
	}
	result := resp.Result
	if resp.Err != nil {
		s.logger.Warn().Err(resp.Err).Str("region", resp.RegionID).Uint64("token", resp.Token).Msg("analysis failed")
		fb, ok := s.fallback(resp)
		if !ok {
			metrics.AnalysisResults.WithLabelValues(metrics.OutcomeFailed).Inc()
			return
		}
		s.logger.Info().Str("fallback", string(s.cfg.Fallback)).Str("region", resp.RegionID).Msg("using fallback result")
		metrics.AnalysisResults.WithLabelValues(metrics.OutcomeFallback).Inc()
		result = fb
	} else {
		metrics.AnalysisResults.WithLabelValues(metrics.OutcomeApplied).Inc()
		if s.cache != nil {
			if err := s.cache.PutResult(s.ctx, resp.Payload.Text, result); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache analysis result")
			}
		}
	}

	d := s.fusion.Apply(result, resp.RegionID, s.sched.Now())
	s.summary.result(resp.RegionID, d.Probability, result.NeedsAssistance)
	if d.Changed {
		metrics.AssistanceTransitions.WithLabelValues(d.State.Kind.String()).Inc()
	}
	s.logger.Debug().
		Str("region", resp.RegionID).
		Str("state", d.State.Kind.String()).
		Str("emotion", d.Emotion).
		Float64("probability", d.Probability).
		Msg("analysis applied")
}

func (s *Session) fallback(resp dispatch.Response) (model.AnalysisResult, bool) {
	switch s.cfg.Fallback {
	case model.FallbackCache:
		if s.cache == nil {
			return model.AnalysisResult{}, false
		}
		res, ok, err := s.cache.LookupResult(s.ctx, resp.Payload.Text)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache lookup failed")
			return model.AnalysisResult{}, false
		}
		return res, ok
	case model.FallbackCanned:
		return inference.Canned(resp.Payload), true
	default:
		return model.AnalysisResult{}, false
	}
}

// Summary returns per-region dwell and analysis totals in first-visit order.
func (s *Session) Summary() []model.RegionSummary {
	return s.summary.regions(s.sched.Now())
}

// Probabilities returns the fused confusion probability of every applied result.
func (s *Session) Probabilities() []float64 {
	return append([]float64(nil), s.summary.probabilities...)
}
