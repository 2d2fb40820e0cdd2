package transport

import (
	"sync"
	"time"
)

// BreakerState is the state of the database circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerHalfOpen lets trial calls through until enough succeed.
	BreakerHalfOpen
	// BreakerOpen rejects calls until the cool-down elapses.
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// minRateSamples is the number of calls a window needs before its error
// rate can trip the breaker.
const minRateSamples = 10

// Breaker trips after a run of consecutive failures, or when the failure
// rate inside a tumbling window crosses a threshold. It is safe for
// concurrent use.
type Breaker struct {
	mu sync.Mutex

	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	failureThreshold int
	successThreshold int
	coolDown         time.Duration

	rateThreshold  float64
	rateWindow     time.Duration
	windowStart    time.Time
	windowCalls    int
	windowFailures int

	now      func() time.Time
	onChange func(from, to BreakerState)
}

// BreakerSettings configures a Breaker. Zero thresholds fall back to 5
// failures, 2 successes and a 30s cool-down. A zero rate or window disables
// rate based tripping.
type BreakerSettings struct {
	FailureThreshold   int
	SuccessThreshold   int
	CoolDown           time.Duration
	ErrorRateThreshold float64
	ErrorRateWindow    time.Duration
	// OnStateChange is called with the lock released after every transition.
	OnStateChange func(from, to BreakerState)
}

// NewBreaker returns a closed breaker.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.FailureThreshold < 1 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold < 1 {
		s.SuccessThreshold = 2
	}
	if s.CoolDown <= 0 {
		s.CoolDown = 30 * time.Second
	}
	b := &Breaker{
		failureThreshold: s.FailureThreshold,
		successThreshold: s.SuccessThreshold,
		coolDown:         s.CoolDown,
		rateThreshold:    s.ErrorRateThreshold,
		rateWindow:       s.ErrorRateWindow,
		now:              time.Now,
		onChange:         s.OnStateChange,
	}
	b.windowStart = b.now()
	return b
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	from := b.state
	b.expireLocked()
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return to != BreakerOpen
}

// Success records a call that reached the server and did not fail on its side.
func (b *Breaker) Success() {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case BreakerClosed:
		b.failures = 0
		b.countLocked(false)
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
			b.resetWindowLocked()
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// Failure records a connection failure or a 5xx answer.
func (b *Breaker) Failure() {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case BreakerClosed:
		b.failures++
		b.countLocked(true)
		if b.failures >= b.failureThreshold || b.rateExceededLocked() {
			b.tripLocked()
		}
	case BreakerHalfOpen:
		b.tripLocked()
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// State returns the current state, moving an expired open breaker to half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	from := b.state
	b.expireLocked()
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return to
}

// ErrorRate returns the failure rate and call count of the current window.
func (b *Breaker) ErrorRate() (rate float64, calls int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollWindowLocked()
	if b.windowCalls == 0 {
		return 0, 0
	}
	return float64(b.windowFailures) / float64(b.windowCalls), b.windowCalls
}

func (b *Breaker) notify(from, to BreakerState) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *Breaker) tripLocked() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.successes = 0
	b.resetWindowLocked()
}

func (b *Breaker) expireLocked() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) > b.coolDown {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
}

func (b *Breaker) countLocked(failed bool) {
	if b.rateWindow <= 0 {
		return
	}
	b.rollWindowLocked()
	b.windowCalls++
	if failed {
		b.windowFailures++
	}
}

func (b *Breaker) rollWindowLocked() {
	if b.rateWindow > 0 && b.now().Sub(b.windowStart) > b.rateWindow {
		b.resetWindowLocked()
	}
}

func (b *Breaker) resetWindowLocked() {
	b.windowStart = b.now()
	b.windowCalls = 0
	b.windowFailures = 0
}

func (b *Breaker) rateExceededLocked() bool {
	if b.rateThreshold <= 0 || b.rateWindow <= 0 || b.windowCalls < minRateSamples {
		return false
	}
	return float64(b.windowFailures)/float64(b.windowCalls) >= b.rateThreshold
}
