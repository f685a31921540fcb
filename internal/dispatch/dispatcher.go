package dispatch

import (
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/readaid/internal/model"
)

// Fixed dispatch policy.
const (
	QuietPeriodMs int64 = 1000
	MinTextRunes        = 5
)

// Request is one analysis call tagged with the token it was issued under.
type Request struct {
	Token          uint64
	RegionID       string
	Payload        model.AnalysisRequest
	DispatchedAtMs int64
}

// Response is the outcome of a Request. Err is set on transport failure.
type Response struct {
	Token    uint64
	RegionID string
	Payload  model.AnalysisRequest
	Result   model.AnalysisResult
	Err      error
}

// Builder assembles the request payload at dispatch time.
type Builder interface {
	BuildRequest(region model.TextRegion, nowMs int64) model.AnalysisRequest
}

// Sender hands a request to the transport. It must not block on the network.
type Sender interface {
	Send(req Request)
}

// Dispatcher debounces analysis calls per dwell and tracks which of them are
// still relevant. Cancelling only stops a scheduled call; a call already sent
// is left to complete and is filtered on arrival.
type Dispatcher struct {
	sched   *Scheduler
	builder Builder
	sender  Sender
	logger  zerolog.Logger

	cancel         CancelFunc
	scheduledToken uint64
	lastSent       uint64
	inflight       map[uint64]struct{}
}

// NewDispatcher wires a dispatcher to its scheduler, payload builder and transport.
func NewDispatcher(sched *Scheduler, builder Builder, sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sched:    sched,
		builder:  builder,
		sender:   sender,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		inflight: map[uint64]struct{}{},
	}
}

// OnDwell is called whenever a new dwell starts. Any scheduled call is
// cancelled; a new one is scheduled when the region text is long enough.
func (d *Dispatcher) OnDwell(region model.TextRegion, token uint64) bool {
	d.Cancel()
	if utf8.RuneCountInString(region.Text) < MinTextRunes {
		d.logger.Debug().Str("region", region.ID).Uint64("token", token).Msg("region text too short, not scheduling")
		return false
	}
	d.scheduledToken = token
	d.cancel = d.sched.After(QuietPeriodMs, func(nowMs int64) {
		d.cancel = nil
		d.fire(region, token, nowMs)
	})
	d.logger.Debug().Str("region", region.ID).Uint64("token", token).Int64("due_ms", d.sched.Now()+QuietPeriodMs).Msg("analysis scheduled")
	return true
}

// Cancel drops the scheduled call, if any.
func (d *Dispatcher) Cancel() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Scheduled reports whether a call is waiting for its quiet period.
func (d *Dispatcher) Scheduled() bool {
	return d.cancel != nil
}

// InFlight returns the number of sent calls without a response yet.
func (d *Dispatcher) InFlight() int {
	return len(d.inflight)
}

func (d *Dispatcher) fire(region model.TextRegion, token uint64, nowMs int64) {
	if token <= d.lastSent {
		return
	}
	d.lastSent = token
	req := Request{
		Token:          token,
		RegionID:       region.ID,
		Payload:        d.builder.BuildRequest(region, nowMs),
		DispatchedAtMs: nowMs,
	}
	d.inflight[token] = struct{}{}
	d.logger.Debug().
		Str("region", region.ID).
		Uint64("token", token).
		Float64("reading_time_s", req.Payload.ReadingTimeSeconds).
		Msg("analysis dispatched")
	d.sender.Send(req)
}

// Complete records a response and reports whether it is still current.
func (d *Dispatcher) Complete(resp Response, currentToken uint64) bool {
	delete(d.inflight, resp.Token)
	if resp.Token != currentToken {
		d.logger.Debug().
			Uint64("token", resp.Token).
			Uint64("current", currentToken).
			Msg("discarding stale analysis result")
		return false
	}
	return true
}
