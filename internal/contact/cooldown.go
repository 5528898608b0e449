package contact

import "time"

// DefaultCooldownSeconds is the window after a successful send during which
// further submissions are rejected.
const DefaultCooldownSeconds = 60

// Cooldown is the rate-limit state of a single form instance.
type Cooldown struct {
	Running bool `json:"isRunning"`
	Elapsed int  `json:"elapsedSeconds"`
}

// remaining returns the seconds left in a window of the given size.
func (c Cooldown) remaining(window int) int {
	if !c.Running {
		return 0
	}
	return window - c.Elapsed
}

// tick advances the cooldown by one second. The tick that reaches the window
// also stops it, so Elapsed never equals window while Running.
func (c Cooldown) tick(window int) Cooldown {
	if !c.Running {
		return c
	}
	if c.Elapsed+1 >= window {
		return Cooldown{}
	}
	return Cooldown{Running: true, Elapsed: c.Elapsed + 1}
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the wall-clock TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}
