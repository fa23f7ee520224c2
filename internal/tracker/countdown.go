package tracker

import "fmt"

// Countdown is the handle returned by BeginCountdown. It goes stale as soon
// as another attempt starts.
type Countdown struct {
	t       *Tracker
	attempt uint64
	total   int
}

func (c *Countdown) Total() int { return c.total }

// Remaining is the number of seconds left, or 0 once the countdown is no
// longer running.
func (c *Countdown) Remaining() int {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.t.attempt != c.attempt || c.t.phase != PhaseCountingDown {
		return 0
	}
	return c.t.remaining
}

func (c *Countdown) Format() string { return FormatSeconds(c.Remaining()) }

// Cancel stops this countdown if it is still the running one.
func (c *Countdown) Cancel() { c.t.cancelCountdown(c.attempt) }

// FormatSeconds renders seconds as MM:SS.
func FormatSeconds(s int) string {
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
