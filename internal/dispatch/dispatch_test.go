package dispatch

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/readaid/internal/model"
)

type recordingSender struct {
	sent []Request
}

func (r *recordingSender) Send(req Request) {
	r.sent = append(r.sent, req)
}

type dwellBuilder struct {
	since int64
}

func (b *dwellBuilder) BuildRequest(region model.TextRegion, nowMs int64) model.AnalysisRequest {
	return model.AnalysisRequest{
		Text:               region.Text,
		ReadingTimeSeconds: float64(nowMs-b.since) / 1000,
	}
}

func newTestDispatcher() (*Dispatcher, *Scheduler, *recordingSender, *dwellBuilder) {
	sched := NewScheduler()
	sender := &recordingSender{}
	builder := &dwellBuilder{}
	return NewDispatcher(sched, builder, sender, zerolog.Nop()), sched, sender, builder
}

var (
	regionA = model.TextRegion{ID: "a", Text: "A sentence long enough to analyze."}
	regionB = model.TextRegion{ID: "b", Text: "Another sentence."}
)

func TestSchedulerRunsDueTasksInOrder(t *testing.T) {
	s := NewScheduler()
	s.Advance(0)
	var order []string
	s.At(300, func(int64) { order = append(order, "late") })
	s.At(100, func(int64) { order = append(order, "early") })
	cancel := s.At(200, func(int64) { order = append(order, "cancelled") })
	cancel()

	assert.Equal(t, 0, s.Advance(50))
	assert.Equal(t, 2, s.Advance(300))
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Empty(t, s.tasks)
}

func TestSchedulerClockNeverMovesBackwards(t *testing.T) {
	s := NewScheduler()
	s.Advance(500)
	s.Advance(100)
	assert.Equal(t, int64(500), s.Now())
}

func TestDebounceFiresAfterQuietPeriod(t *testing.T) {
	d, sched, sender, _ := newTestDispatcher()
	sched.Advance(0)
	require.True(t, d.OnDwell(regionA, 1))

	sched.Advance(999)
	assert.Empty(t, sender.sent)
	sched.Advance(1000)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, uint64(1), sender.sent[0].Token)
	assert.Equal(t, "a", sender.sent[0].RegionID)
	assert.Equal(t, 1, d.InFlight())
}

func TestRegionChangeCancelsPendingCall(t *testing.T) {
	d, sched, sender, builder := newTestDispatcher()
	sched.Advance(0)
	d.OnDwell(regionA, 1)
	sched.Advance(300)
	d.OnDwell(regionB, 2)
	sched.Advance(450)
	builder.since = 450
	d.OnDwell(regionA, 3)

	sched.Advance(1300)
	assert.Empty(t, sender.sent, "no call should fire merely because time passed")
	sched.Advance(1450)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, uint64(3), sender.sent[0].Token)
	assert.InDelta(t, 1.0, sender.sent[0].Payload.ReadingTimeSeconds, 1e-9)

	sched.Advance(10000)
	assert.Len(t, sender.sent, 1)
}

func TestShortRegionIsNotScheduled(t *testing.T) {
	d, sched, sender, _ := newTestDispatcher()
	sched.Advance(0)
	d.OnDwell(regionA, 1)
	assert.False(t, d.OnDwell(model.TextRegion{ID: "x", Text: "Hey"}, 2))
	assert.False(t, d.Scheduled())
	sched.Advance(5000)
	assert.Empty(t, sender.sent)
}

func TestFiveRunesIsLongEnough(t *testing.T) {
	d, sched, _, _ := newTestDispatcher()
	sched.Advance(0)
	assert.True(t, d.OnDwell(model.TextRegion{ID: "x", Text: "héllo"}, 1))
}

func TestCompleteDiscardsStaleTokens(t *testing.T) {
	d, sched, sender, _ := newTestDispatcher()
	sched.Advance(0)
	d.OnDwell(regionA, 1)
	sched.Advance(1000)
	require.Len(t, sender.sent, 1)

	assert.False(t, d.Complete(Response{Token: 1}, 2))
	assert.Equal(t, 0, d.InFlight())
	assert.True(t, d.Complete(Response{Token: 2}, 2))
}
