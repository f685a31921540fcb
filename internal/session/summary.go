package session

import "github.com/verte-zerg/readaid/internal/model"

type summary struct {
	order         []string
	byID          map[string]*model.RegionSummary
	current       string
	sinceMs       int64
	dwelling      bool
	probabilities []float64
}

func newSummary() *summary {
	return &summary{byID: map[string]*model.RegionSummary{}}
}

func (s *summary) get(id string) *model.RegionSummary {
	rs, ok := s.byID[id]
	if !ok {
		rs = &model.RegionSummary{RegionID: id}
		s.byID[id] = rs
		s.order = append(s.order, id)
	}
	return rs
}

func (s *summary) enter(id string, nowMs int64) {
	s.leave(nowMs)
	s.get(id).Visits++
	s.current = id
	s.sinceMs = nowMs
	s.dwelling = true
}

func (s *summary) leave(nowMs int64) {
	if !s.dwelling {
		return
	}
	if nowMs > s.sinceMs {
		s.get(s.current).DwellMs += nowMs - s.sinceMs
	}
	s.dwelling = false
}

func (s *summary) dispatched(id string) {
	s.get(id).Dispatches++
}

func (s *summary) result(id string, probability float64, triggered bool) {
	rs := s.get(id)
	rs.ConfusionProbability = probability
	if triggered {
		rs.Triggers++
	}
	s.probabilities = append(s.probabilities, probability)
}

// regions reports totals with the open dwell counted up to nowMs.
func (s *summary) regions(nowMs int64) []model.RegionSummary {
	out := make([]model.RegionSummary, 0, len(s.order))
	for _, id := range s.order {
		rs := *s.byID[id]
		if s.dwelling && id == s.current && nowMs > s.sinceMs {
			rs.DwellMs += nowMs - s.sinceMs
		}
		out = append(out, rs)
	}
	return out
}
