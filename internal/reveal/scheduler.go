package reveal

import "time"

// DefaultInterval is the cadence between card disclosures.
const DefaultInterval = 350 * time.Millisecond

// Key identifies what a schedule was built for. Any change restarts it.
type Key struct {
	MessageID string
	Text      string
	Cards     int
}

// State is the observable progress of one displayed message.
type State struct {
	VisibleCards       int
	TextRevealComplete bool
}

// Scheduler withholds a message's cards until its text has been typed out,
// then discloses them one at a time. It holds no timers: callers pass the
// current time and use NextReveal to schedule their own ticks.
type Scheduler struct {
	Interval time.Duration

	key     Key
	synced  bool
	typed   bool
	skipped bool
	readyAt time.Time
}

func NewScheduler(interval time.Duration) *Scheduler {
	return &Scheduler{Interval: interval}
}

// Sync points the scheduler at k. It reports whether the schedule restarted,
// which happens whenever k differs from the previous key.
func (s *Scheduler) Sync(k Key, now time.Time) bool {
	if s.synced && s.key == k {
		return false
	}
	s.key = k
	s.synced = true
	s.skipped = false
	s.typed = k.Text == ""
	s.readyAt = time.Time{}
	if s.typed {
		s.readyAt = now
	}
	return true
}

func (s *Scheduler) Key() Key {
	return s.key
}

// SetTypingComplete marks the text as fully typed. Only the first call
// counts.
func (s *Scheduler) SetTypingComplete(now time.Time) {
	if s.typed {
		return
	}
	s.typed = true
	s.readyAt = now
}

// Skip completes typing and reveals every card at once.
func (s *Scheduler) Skip(now time.Time) {
	s.SetTypingComplete(now)
	s.skipped = true
}

func (s *Scheduler) TypingComplete() bool {
	return s.typed
}

// ShouldReveal reports whether card i may be shown at now.
func (s *Scheduler) ShouldReveal(i int, now time.Time) bool {
	if i < 0 || i >= s.key.Cards {
		return false
	}
	return i < s.Visible(now)
}

// Visible is the number of cards disclosed at now.
func (s *Scheduler) Visible(now time.Time) int {
	if !s.typed || s.key.Cards == 0 {
		return 0
	}
	if s.skipped || s.Interval <= 0 {
		return s.key.Cards
	}
	elapsed := now.Sub(s.readyAt)
	if elapsed < 0 {
		return 0
	}
	n := int(elapsed/s.Interval) + 1
	if n > s.key.Cards {
		n = s.key.Cards
	}
	return n
}

func (s *Scheduler) State(now time.Time) State {
	return State{VisibleCards: s.Visible(now), TextRevealComplete: s.typed}
}

// Done reports whether the text is typed and every card is visible.
func (s *Scheduler) Done(now time.Time) bool {
	return s.typed && s.Visible(now) == s.key.Cards
}

// NextReveal returns how long until the next card is due. ok is false while
// typing is pending or once every card is visible.
func (s *Scheduler) NextReveal(now time.Time) (wait time.Duration, ok bool) {
	if !s.typed || s.Done(now) {
		return 0, false
	}
	due := s.readyAt.Add(time.Duration(s.Visible(now)) * s.Interval)
	wait = due.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}
