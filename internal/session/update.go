package session

import (
	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/region"
)

// Update is a snapshot of what a renderer needs after a state change.
type Update struct {
	SessionID string
	State     model.AssistanceState
	Emotion   string
	RegionID  string
	Text      string
	Overlay   *model.PixelBox
	Pending   bool
	At        int64
}

// Observer receives updates on the session goroutine. It must not block.
type Observer func(Update)

// Subscribe registers an observer.
func (s *Session) Subscribe(fn Observer) {
	s.observers = append(s.observers, fn)
}

// Snapshot builds the current update.
func (s *Session) Snapshot() Update {
	current, _, _ := s.tracker.Current()
	u := Update{
		SessionID: s.id,
		State:     s.fusion.State(),
		Emotion:   s.fusion.Emotion(),
		RegionID:  current,
		Pending:   s.dispatcher.Scheduled() || s.dispatcher.InFlight() > 0,
		At:        s.sched.Now(),
	}
	if r, ok := s.mapper.Index().Lookup(current); ok {
		u.Text = r.Text
	}
	if u.State.Kind == model.AssistanceSuggesting {
		u.Overlay = s.overlay(u.State.RegionID)
	}
	return u
}

func (s *Session) overlay(regionID string) *model.PixelBox {
	r, ok := s.mapper.Index().Lookup(regionID)
	if !ok {
		return nil
	}
	box, ok := region.MapHighlight(s.mapper.Highlight(r), s.mapper.Rendered())
	if !ok {
		s.logger.Debug().Str("region", regionID).Msg("overlay suppressed, invalid geometry")
		return nil
	}
	return &box
}

func (s *Session) publish() {
	u := s.Snapshot()
	if s.published && sameUpdate(u, s.last) {
		return
	}
	s.last = u
	s.published = true
	for _, fn := range s.observers {
		fn(u)
	}
}

func sameUpdate(a, b Update) bool {
	if a.State != b.State || a.Emotion != b.Emotion || a.RegionID != b.RegionID || a.Text != b.Text || a.Pending != b.Pending {
		return false
	}
	if (a.Overlay == nil) != (b.Overlay == nil) {
		return false
	}
	return a.Overlay == nil || *a.Overlay == *b.Overlay
}
