// Package scheduler implements the cron-like periodic trigger (spec
// component C7): a ticker firing at a fixed cadence plus an imperative
// force-check entry point, with a single-flight guard so a coincident
// tick is dropped rather than queued or reentering a running session.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/session"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/shared/logging"
)

// DefaultInterval is the spec's default cadence: every 30 minutes.
const DefaultInterval = 30 * time.Minute

// Scheduler ticks a *session.Session at a fixed interval, starting exactly
// one initial session immediately on Run.
type Scheduler struct {
	session  *session.Session
	interval time.Duration
	logger   *logrus.Entry
}

// New builds a Scheduler for the given session and interval. A
// non-positive interval falls back to DefaultInterval.
func New(sess *session.Session, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		session:  sess,
		interval: interval,
		logger:   logger.WithField("component", "scheduler"),
	}
}

// Run starts exactly one session immediately, then ticks at the
// configured interval until ctx is cancelled. Each tick that lands while
// a session is already in flight is dropped silently, per spec §4.7/§5;
// Run never returns an error for a dropped tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, context cancelled")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	verdict, ran, err := s.session.TryRun(ctx)
	if !ran {
		s.logger.Warn("scheduled tick dropped: a probe session is already in flight")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("scheduled probe session failed")
		return
	}
	s.logger.WithFields(logging.PerformanceFields("scheduled-tick", time.Since(start), true).
		Custom("overall", string(verdict.Overall)).
		Custom("score", verdict.Score).ToLogrus()).
		Info("scheduled probe session complete")
}

// ForceCheck runs an on-demand session immediately, failing fast with
// session.ErrSessionInFlight if one is already running.
func (s *Scheduler) ForceCheck(ctx context.Context) (*session.Verdict, error) {
	return s.session.ForceCheck(ctx)
}
