// Package dispatch debounces analysis requests and reconciles their responses.
package dispatch

import "sort"

// CancelFunc cancels a scheduled task. Calling it after the task ran, or
// more than once, is a no-op.
type CancelFunc func()

type task struct {
	id       uint64
	dueMs    int64
	fn       func(nowMs int64)
	canceled bool
}

// Scheduler runs delayed tasks against an explicitly advanced clock. It is
// driven by the owning session and is not safe for concurrent use.
type Scheduler struct {
	nowMs   int64
	started bool
	nextID  uint64
	tasks   []*task
}

// NewScheduler returns a scheduler whose clock starts at the first Advance.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the scheduler clock.
func (s *Scheduler) Now() int64 {
	return s.nowMs
}

// After schedules fn to run once the clock reaches Now()+delayMs.
func (s *Scheduler) After(delayMs int64, fn func(nowMs int64)) CancelFunc {
	return s.At(s.nowMs+delayMs, fn)
}

// At schedules fn to run once the clock reaches dueMs.
func (s *Scheduler) At(dueMs int64, fn func(nowMs int64)) CancelFunc {
	s.nextID++
	t := &task{id: s.nextID, dueMs: dueMs, fn: fn}
	s.tasks = append(s.tasks, t)
	return func() {
		t.canceled = true
	}
}

// Advance moves the clock forward and runs every due task in due order.
// The clock never moves backwards. It returns the number of tasks run.
func (s *Scheduler) Advance(nowMs int64) int {
	if !s.started || nowMs > s.nowMs {
		s.nowMs = nowMs
		s.started = true
	}
	ran := 0
	for {
		next := s.popDue()
		if next == nil {
			return ran
		}
		next.fn(s.nowMs)
		ran++
	}
}

func (s *Scheduler) popDue() *task {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].dueMs == s.tasks[j].dueMs {
			return s.tasks[i].id < s.tasks[j].id
		}
		return s.tasks[i].dueMs < s.tasks[j].dueMs
	})
	if len(s.tasks) == 0 || s.tasks[0].dueMs > s.nowMs {
		return nil
	}
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	t.canceled = true
	return t
}
