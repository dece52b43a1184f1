package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker
type State int

const (
	// StateClosed allows requests to pass through
	StateClosed State = iota
	// StateOpen prevents requests from passing through
	StateOpen
	// StateHalfOpen allows a limited number of test requests
	StateHalfOpen
)

// String returns a string representation of the circuit breaker state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned when the circuit breaker rejects a call.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds configuration for a sliding-window circuit breaker.
type Config struct {
	Name string
	// WindowSize is the number of recent call outcomes examined.
	WindowSize int
	// MinimumCalls must be recorded in the window before rates are evaluated.
	MinimumCalls int
	// FailureRateThreshold is the failure percentage (0-100) that opens the breaker.
	FailureRateThreshold float64
	// SlowCallDuration marks a call as slow once its duration reaches it.
	SlowCallDuration time.Duration
	// SlowCallRateThreshold is the slow-call percentage (0-100) that opens the breaker.
	SlowCallRateThreshold float64
	// OpenDuration is how long the breaker stays open before probing.
	OpenDuration time.Duration
	// HalfOpenMaxCalls is the number of probe calls permitted in half-open.
	HalfOpenMaxCalls int
	OnStateChange    func(name string, from, to State)
}

type outcome struct {
	failure bool
	slow    bool
}

// Breaker implements the circuit breaker pattern over a count-based sliding
// window of call outcomes, tracking both failures and slow calls.
type Breaker struct {
	mu   sync.Mutex
	cfg  Config
	state State

	// Ring buffer of the latest WindowSize outcomes.
	window   []outcome
	head     int
	count    int
	failures int
	slow     int

	openedAt time.Time

	// Half-open probe accounting.
	probesStarted   int
	probesSucceeded int
}

// New creates a breaker, filling zero config fields with defaults.
func New(cfg Config) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.MinimumCalls <= 0 {
		cfg.MinimumCalls = 10
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = 50
	}
	if cfg.SlowCallRateThreshold <= 0 {
		cfg.SlowCallRateThreshold = 50
	}
	if cfg.SlowCallDuration <= 0 {
		cfg.SlowCallDuration = 10 * time.Second
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 60 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 5
	}

	return &Breaker{
		cfg:    cfg,
		state:  StateClosed,
		window: make([]outcome, cfg.WindowSize),
	}
}

// Execute runs fn if the breaker allows it, recording the outcome.
// A context already cancelled before the call counts as the caller's
// failure, not the dependency's, and is not recorded.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.allow() {
		return ErrOpen
	}

	start := time.Now()
	err := fn()
	b.record(err != nil, time.Since(start))

	return err
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// State returns the current state, promoting OPEN to HALF_OPEN when the open
// interval has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.OpenDuration {
		b.toHalfOpen()
	}
	return b.state
}

// allow determines if the breaker permits a call right now.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.OpenDuration {
			return false
		}
		b.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if b.probesStarted >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.probesStarted++
		return true
	default:
		return false
	}
}

// record stores a call outcome and evaluates state transitions.
func (b *Breaker) record(failure bool, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	slow := duration >= b.cfg.SlowCallDuration

	switch b.state {
	case StateHalfOpen:
		if failure || slow {
			b.trip()
			return
		}
		b.probesSucceeded++
		if b.probesSucceeded >= b.cfg.HalfOpenMaxCalls {
			b.reset()
		}
	case StateClosed:
		b.push(outcome{failure: failure, slow: slow})
		if b.count < b.cfg.MinimumCalls {
			return
		}
		failureRate := float64(b.failures) / float64(b.count) * 100
		slowRate := float64(b.slow) / float64(b.count) * 100
		if failureRate >= b.cfg.FailureRateThreshold || slowRate >= b.cfg.SlowCallRateThreshold {
			b.trip()
		}
	case StateOpen:
		// A call admitted just before the breaker opened; outcome is stale.
	}
}

// push adds an outcome to the ring buffer, evicting the oldest entry.
func (b *Breaker) push(o outcome) {
	if b.count == len(b.window) {
		evicted := b.window[b.head]
		if evicted.failure {
			b.failures--
		}
		if evicted.slow {
			b.slow--
		}
	} else {
		b.count++
	}

	b.window[b.head] = o
	b.head = (b.head + 1) % len(b.window)
	if o.failure {
		b.failures++
	}
	if o.slow {
		b.slow++
	}
}

// trip moves the breaker to OPEN and clears the window.
func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.clearWindow()
	b.setState(StateOpen)
}

// reset closes the breaker with a fresh window.
func (b *Breaker) reset() {
	b.clearWindow()
	b.setState(StateClosed)
}

// toHalfOpen starts a new probe round. Callers must hold the lock.
func (b *Breaker) toHalfOpen() {
	b.probesStarted = 0
	b.probesSucceeded = 0
	b.setState(StateHalfOpen)
}

func (b *Breaker) clearWindow() {
	for i := range b.window {
		b.window[i] = outcome{}
	}
	b.head = 0
	b.count = 0
	b.failures = 0
	b.slow = 0
}

// setState changes state and fires the callback. Callers must hold the lock.
func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState

	if b.cfg.OnStateChange != nil {
		// Call callback without holding lock to avoid potential deadlocks
		go b.cfg.OnStateChange(b.cfg.Name, oldState, newState)
	}
}
