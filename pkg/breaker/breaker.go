// Package breaker implements the tri-state (closed/open/half-open) gate
// that sits in front of every endpoint probe and, separately, in front of
// the auto-fix engine. It is a thin adapter over sony/gobreaker: gobreaker's
// native consecutive-failure/consecutive-success counters already match the
// state table this package needs to expose, so the adapter's job is
// surfacing the fields (nextProbeAllowedAt, successStreak) and error kind
// the rest of the supervisor expects, plus wiring state transitions to the
// shared metrics and logging packages.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	sharederrors "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/errors"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/shared/logging"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// State mirrors the breaker's tri-state status.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Defaults per the per-endpoint gate: 3 failures trip the breaker, a 30s
// recovery window, 2 consecutive half-open successes close it again.
const (
	DefaultFailureThreshold uint32 = 3
	DefaultSuccessThreshold uint32 = 2
	DefaultRecoveryTimeout         = 30 * time.Second
)

// Breaker wraps a gobreaker.CircuitBreaker with the fields and reset
// semantics the supervisor's state model requires.
type Breaker struct {
	name             string
	failureThreshold uint32
	successThreshold uint32
	recoveryTimeout  time.Duration
	logger           *logrus.Entry

	mu                 sync.Mutex
	cb                 *gobreaker.CircuitBreaker
	nextProbeAllowedAt time.Time
}

// New builds a Breaker identified by name (typically the endpoint path),
// using the given thresholds and recovery timeout.
func New(name string, failureThreshold, successThreshold uint32, recoveryTimeout time.Duration, logger *logrus.Logger) *Breaker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger.WithFields(logging.BreakerFields("init", name).ToLogrus()),
	}
	b.cb = b.newGobreaker()
	return b
}

// NewDefault builds a Breaker using the spec's default per-endpoint gate
// thresholds (3 / 30s / 2).
func NewDefault(name string, logger *logrus.Logger) *Breaker {
	return New(name, DefaultFailureThreshold, DefaultSuccessThreshold, DefaultRecoveryTimeout, logger)
}

func (b *Breaker) newGobreaker() *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.successThreshold,
		Timeout:     b.recoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromState, toState := translateState(from), translateState(to)
			if toState == StateOpen {
				b.mu.Lock()
				b.nextProbeAllowedAt = time.Now().Add(b.recoveryTimeout)
				b.mu.Unlock()
			}
			metrics.RecordBreakerTransition(name, string(fromState), string(toState))
			b.logger.WithFields(logging.BreakerFields("transition", name).
				Custom("from_state", fromState).
				Custom("to_state", toState).ToLogrus()).Info("circuit breaker state transition")
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// Execute runs fn through the breaker. If the breaker is open it returns a
// breakerOpen error without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.currentCB().Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return sharederrors.FailedToWithDetails("execute call", "breaker", b.name,
			sharederrors.Wrapf(err, "%s", sharederrors.KindBreakerOpen))
	}
	return err
}

func (b *Breaker) currentCB() *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cb
}

// State returns the breaker's current tri-state status.
func (b *Breaker) State() State {
	return translateState(b.currentCB().State())
}

// Name returns the breaker's identifying name (usually the endpoint path).
func (b *Breaker) Name() string {
	return b.name
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() uint32 {
	return b.currentCB().Counts().ConsecutiveFailures
}

// SuccessStreak returns the current consecutive-success count, meaningful
// only while the breaker is half-open.
func (b *Breaker) SuccessStreak() uint32 {
	return b.currentCB().Counts().ConsecutiveSuccesses
}

// NextProbeAllowedAt returns the time at which an open breaker will accept
// its next probe attempt (zero value if the breaker has never opened).
func (b *Breaker) NextProbeAllowedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextProbeAllowedAt
}

// Reset force-transitions the breaker to closed with all counters zeroed.
// gobreaker exposes no in-place reset, so this discards the wrapped
// instance and builds a fresh one with the same settings.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = b.newGobreaker()
	b.nextProbeAllowedAt = time.Time{}
}

func translateState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
