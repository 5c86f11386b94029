package service

import (
	"context"
	"sync"
	"time"

	"careerprep/internal/domain"
)

// TimerState is the state of a ChallengeTimer.
type TimerState string

const (
	TimerIdle      TimerState = "idle"
	TimerRunning   TimerState = "running"
	TimerExpired   TimerState = "expired"
	TimerCancelled TimerState = "cancelled"
)

// ChallengeTimer is a countdown of whole units driven by Tick.
//
// Ticks are counted rather than derived from the clock. An absolute deadline is
// kept alongside so Resume can correct the count after the host was suspended.
// The expiry callback fires at most once per Start.
type ChallengeTimer struct {
	mu        sync.Mutex
	state     TimerState
	unit      time.Duration
	remaining int
	deadline  time.Time
	fired     bool
	onExpire  func()
	now       func() time.Time
}

// NewChallengeTimer creates an idle timer counting in units of unit.
func NewChallengeTimer(unit time.Duration) *ChallengeTimer {
	if unit <= 0 {
		unit = time.Second
	}
	return &ChallengeTimer{
		state: TimerIdle,
		unit:  unit,
		now:   time.Now,
	}
}

// OnExpire sets the callback run when the timer reaches zero.
func (t *ChallengeTimer) OnExpire(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = fn
}

// Start moves Idle to Running with duration units on the clock.
func (t *ChallengeTimer) Start(duration int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerIdle {
		return t.transitionError("start")
	}
	if duration <= 0 {
		return &domain.ValidationError{Field: "duration", Message: "must be positive"}
	}
	t.state = TimerRunning
	t.remaining = duration
	t.deadline = t.now().Add(time.Duration(duration) * t.unit)
	t.fired = false
	return nil
}

// Tick removes one unit. Reaching zero expires the timer; ticks outside
// Running are no-ops.
func (t *ChallengeTimer) Tick() {
	t.mu.Lock()
	if t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.remaining--
	fn := t.expireLocked()
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Resume recomputes the remaining units from the absolute deadline. Call it
// after the tick source may have been suspended.
func (t *ChallengeTimer) Resume() {
	t.mu.Lock()
	if t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	left := t.deadline.Sub(t.now())
	remaining := int((left + t.unit - 1) / t.unit)
	if remaining < t.remaining {
		t.remaining = remaining
	}
	fn := t.expireLocked()
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel moves Running to Cancelled. No expiry fires afterwards.
func (t *ChallengeTimer) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerRunning {
		return t.transitionError("cancel")
	}
	t.state = TimerCancelled
	return nil
}

// Reset returns the timer to Idle for the next challenge.
func (t *ChallengeTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = TimerIdle
	t.remaining = 0
	t.deadline = time.Time{}
	t.fired = false
}

// State returns the current state.
func (t *ChallengeTimer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the units left on the clock.
func (t *ChallengeTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining < 0 {
		return 0
	}
	return t.remaining
}

// expireLocked transitions to Expired when the count is exhausted and returns
// the callback to run once the lock is released.
func (t *ChallengeTimer) expireLocked() func() {
	if t.remaining > 0 {
		return nil
	}
	t.remaining = 0
	t.state = TimerExpired
	if t.fired {
		return nil
	}
	t.fired = true
	return t.onExpire
}

// seconds converts n units to whole seconds, rounding up.
func (t *ChallengeTimer) seconds(n int) int {
	return int((time.Duration(n)*t.unit + time.Second - 1) / time.Second)
}

func (t *ChallengeTimer) transitionError(op string) error {
	return &domain.TransitionError{Machine: "timer", From: string(t.state), Op: op}
}

// RunTimer drives t from wall-clock ticks until it leaves Running or ctx is
// done. A gap longer than two intervals is treated as a suspension and
// resolved against the deadline instead of counted as a single tick.
func RunTimer(ctx context.Context, t *ChallengeTimer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(last) > 2*interval {
				t.Resume()
			} else {
				t.Tick()
			}
			last = now
			if t.State() != TimerRunning {
				return
			}
		}
	}
}
