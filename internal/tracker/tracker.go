// Package tracker follows which text region is being read and for how long.
package tracker

// ReadingSession is the mutable dwell state of one reading session.
type ReadingSession struct {
	CurrentRegionID      string
	DwellStartMs         int64
	PendingAnalysisToken uint64
}

// Transition describes the outcome of one observation.
type Transition struct {
	Entered  bool
	RegionID string
	Previous string
	SinceMs  int64
	Token    uint64
}

// Tracker is the dwell state machine: Idle, or Dwelling(region, since).
// A brief loss of gaze does not reset the dwell.
type Tracker struct {
	session  ReadingSession
	dwelling bool
}

// New returns an idle tracker.
func New() *Tracker {
	return &Tracker{}
}

// Observe feeds one mapping result. matched is false when the gaze sample
// hit no region; that leaves the state unchanged.
func (t *Tracker) Observe(regionID string, matched bool, nowMs int64) Transition {
	if !matched || (t.dwelling && regionID == t.session.CurrentRegionID) {
		return Transition{
			RegionID: t.session.CurrentRegionID,
			SinceMs:  t.session.DwellStartMs,
			Token:    t.session.PendingAnalysisToken,
		}
	}
	prev := t.session.CurrentRegionID
	t.dwelling = true
	t.session.CurrentRegionID = regionID
	t.session.DwellStartMs = nowMs
	t.session.PendingAnalysisToken++
	return Transition{
		Entered:  true,
		RegionID: regionID,
		Previous: prev,
		SinceMs:  nowMs,
		Token:    t.session.PendingAnalysisToken,
	}
}

// Reset returns to Idle and invalidates any outstanding analysis.
func (t *Tracker) Reset() {
	t.dwelling = false
	t.session.CurrentRegionID = ""
	t.session.DwellStartMs = 0
	t.session.PendingAnalysisToken++
}

// Current returns the region being read, if any.
func (t *Tracker) Current() (regionID string, sinceMs int64, ok bool) {
	return t.session.CurrentRegionID, t.session.DwellStartMs, t.dwelling
}

// Token returns the current analysis token.
func (t *Tracker) Token() uint64 {
	return t.session.PendingAnalysisToken
}

// DwellMs returns how long the current region has been read.
func (t *Tracker) DwellMs(nowMs int64) int64 {
	if !t.dwelling {
		return 0
	}
	return nowMs - t.session.DwellStartMs
}
