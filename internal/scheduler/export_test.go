package scheduler

import "time"

// SetClock replaces the clock used for the notification hour window
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}
