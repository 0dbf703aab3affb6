package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/autofix"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/breaker"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/knowledge"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/perf"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/scoring"
	sharedhttp "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/http"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/shared/logging"
)

// ErrSessionInFlight is returned by ForceCheck when a session is already
// running; per spec §5, there is no user-initiated cancellation, the
// caller simply fails fast.
var ErrSessionInFlight = fmt.Errorf("a probe session is already in flight")

// Broadcaster is the coordination bus's outbound half, as seen by a
// session. Implementations must never block the caller on a slow peer.
type Broadcaster interface {
	BroadcastHealthUpdate(ctx context.Context, verdict *Verdict) error
	BroadcastFixApplied(ctx context.Context, record AutoFixRecord) error
}

// AlertDispatcher is the alert dispatcher's inbound half, as seen by a
// session: hand the verdict's critical issues off and let it dedup/fan out.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, verdict *Verdict) error
}

// Config is the probe session's full configuration.
type Config struct {
	BaseURL        string
	Endpoints      []prober.Endpoint
	SLAThresholdMs int64
	AutoFixEnabled bool
	MockEndpoints  []string
	UIProbe        UIProbeConfig
	ReportsDir     string

	// MaxHistory bounds the in-memory verdict history (spec: "a bounded
	// in-memory window", not a durable time series).
	MaxHistory int
}

// Session orchestrates one full health sweep per spec §4.3's ten steps.
// At most one Run executes at a time; a force-check during an in-flight
// session fails fast rather than queuing.
type Session struct {
	cfg    Config
	logger *logrus.Entry
	client *http.Client

	breakers map[string]*breaker.Breaker
	autofix  *autofix.Engine
	store    *knowledge.Store

	broadcaster Broadcaster
	dispatcher  AlertDispatcher

	perfBuffer *perf.RingBuffer

	running int32 // atomic reentrancy guard, spec §5

	mu                         sync.Mutex
	latest                     *Verdict
	history                    []*Verdict
	consecutiveFailingSessions int
}

// New builds a Session with one breaker per configured endpoint and its
// own auto-fix engine, wired to store, broadcaster, and dispatcher.
func New(cfg Config, store *knowledge.Store, broadcaster Broadcaster, dispatcher AlertDispatcher, logger *logrus.Logger) *Session {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 200
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	breakers := make(map[string]*breaker.Breaker, len(cfg.Endpoints)+1)
	breakers["/"] = breaker.NewDefault("/", logger)
	for _, ep := range cfg.Endpoints {
		breakers[ep.Path] = breaker.NewDefault(ep.Path, logger)
	}

	return &Session{
		cfg:         cfg,
		logger:      logger.WithFields(logging.SessionFields("init", "").ToLogrus()),
		client:      sharedhttp.NewDefaultClient(),
		breakers:    breakers,
		autofix:     autofix.NewEngine(cfg.BaseURL, store, breakers, logger),
		store:       store,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		perfBuffer:  perf.NewRingBuffer(perf.DefaultCapacity),
	}
}

// Latest returns the most recently published verdict, or nil if no
// session has completed yet. Readers never see a partial verdict: the
// field is only set after every step completes.
func (s *Session) Latest() *Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// SetBroadcaster wires the coordination bus in after construction, since
// the bus's own force-check entry point is wired to this session. Callers
// must set this before Run/TryRun is first invoked.
func (s *Session) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// History returns an independent copy of the bounded in-memory verdict
// history, oldest first.
func (s *Session) History() []*Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Verdict, len(s.history))
	copy(out, s.history)
	return out
}

// TryRun attempts to start a session, returning (verdict, true, nil) on
// success or (nil, false, nil) if one is already in flight (the tick is
// dropped, not queued, per spec §4.7/§5).
func (s *Session) TryRun(ctx context.Context) (*Verdict, bool, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil, false, nil
	}
	defer atomic.StoreInt32(&s.running, 0)

	v, err := s.run(ctx)
	return v, true, err
}

// ForceCheck runs an on-demand session, failing fast with
// ErrSessionInFlight if one is already running.
func (s *Session) ForceCheck(ctx context.Context) (*Verdict, error) {
	v, ran, err := s.TryRun(ctx)
	if !ran {
		return nil, ErrSessionInFlight
	}
	return v, err
}

// run executes the ten ordered, independently-faulted steps of spec
// §4.3 and publishes the resulting verdict.
func (s *Session) run(ctx context.Context) (*Verdict, error) {
	start := time.Now()
	checkID := uuid.NewString()
	log := s.logger.WithFields(logging.SessionFields("run", checkID).ToLogrus())

	v := &Verdict{
		CheckID:   checkID,
		Timestamp: start,
	}

	// Step 1: site reachability.
	v.Site = s.probeSite(ctx)

	// Step 2: endpoint sweep.
	v.Endpoints = s.runEndpointSweep(ctx)

	// Step 3 + 4: UI probe and accessibility rubric.
	v.UI = s.runUIProbe(ctx)
	if v.Site.Reachable {
		v.UI.Accessibility = s.probeAccessibility(ctx)
	}

	// Step 5: performance sampling.
	v.Performance = s.runPerformanceSampling(ctx)

	// Step 6: mock-data verification.
	v.MockData = s.runMockDataSweep(ctx)

	// Step 7: auto-fix, if enabled.
	if s.cfg.AutoFixEnabled {
		v.AutoFixes = s.runAutoFixes(ctx, v)
	}

	v.BreakerSnapshots = s.breakerSnapshots()

	// Step 8: critical issue derivation.
	s.mu.Lock()
	consecutiveFailing := s.consecutiveFailingSessions
	s.mu.Unlock()
	v.CriticalIssues = deriveCriticalIssues(v, consecutiveFailing)

	// Step 9: scoring.
	v.Score, v.Overall = scoring.Score(scoring.Measurements{
		SiteReachable:           v.Site.Reachable,
		BaselineLatencyMs:       v.Site.LatencyMs,
		SLAThresholdMs:          s.cfg.SLAThresholdMs,
		EndpointsHealthyPct:     v.Endpoints.Percent,
		UIOverall:               v.UI.Overall,
		AccessibilityScore:      v.UI.Accessibility.Score,
		SLAViolations:           v.Performance.SLAViolations,
		PerformanceAvgLatencyMs: v.Performance.AverageLatencyMs,
		PerformanceAvailability: v.Performance.Availability,
		MockDataWorkingPct:      v.MockData.WorkingPct,
		OpenBreakers:            countOpenBreakers(v.BreakerSnapshots),
		TotalBreakers:           len(v.BreakerSnapshots),
	})
	v.Recommendations = buildRecommendations(v)

	s.recordOutcome(v)

	// Step 10: publish.
	if err := s.writeReports(v, start.Unix()); err != nil {
		log.WithError(err).Error("failed to persist verdict reports")
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastHealthUpdate(ctx, v); err != nil {
			log.WithError(err).Warn("failed to broadcast health update")
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, v); err != nil {
			log.WithError(err).Warn("failed to dispatch alerts")
		}
	}

	metrics.RecordSession(string(v.Overall), time.Since(start))
	log.WithFields(logging.PerformanceFields("session", time.Since(start), v.Overall != scoring.OverallError).ToLogrus()).
		Info("probe session complete")

	return v, nil
}

func (s *Session) probeSite(ctx context.Context) SiteResult {
	outcome := prober.Probe(ctx, s.cfg.BaseURL, prober.Endpoint{
		Path:    "/",
		Name:    "site",
		Timeout: 15 * time.Second,
	})
	return SiteResult{
		Reachable: outcome.Healthy,
		LatencyMs: outcome.LatencyMs,
		Status:    outcome.Status,
		Error:     outcome.Error,
	}
}

func (s *Session) runEndpointSweep(ctx context.Context) EndpointsSummary {
	results := make([]prober.Outcome, 0, len(s.cfg.Endpoints))
	healthy := 0
	for _, ep := range s.cfg.Endpoints {
		outcome := s.probeThroughBreaker(ctx, ep)
		if outcome.Healthy {
			healthy++
		}
		results = append(results, outcome)
	}

	total := len(s.cfg.Endpoints)
	pct := 100.0
	if total > 0 {
		pct = 100.0 * float64(healthy) / float64(total)
	}

	return EndpointsSummary{Healthy: healthy, Total: total, Percent: pct, Results: results}
}

func (s *Session) probeThroughBreaker(ctx context.Context, ep prober.Endpoint) prober.Outcome {
	b := s.breakers[ep.Path]
	if b == nil {
		b = breaker.NewDefault(ep.Path, nil)
		s.breakers[ep.Path] = b
	}

	var outcome prober.Outcome
	ran := false
	timer := metrics.NewTimer()
	err := b.Execute(ctx, func(ctx context.Context) error {
		ran = true
		outcome = prober.Probe(ctx, s.cfg.BaseURL, ep)
		if !outcome.Healthy {
			return fmt.Errorf("probe unhealthy: %s", outcome.Error)
		}
		return nil
	})

	if !ran {
		outcome = prober.Outcome{
			Endpoint: ep.Path,
			Healthy:  false,
			Error:    "breaker open, probe rejected",
		}
	}
	outcome.BreakerState = string(b.State())

	label := "success"
	if !outcome.Healthy {
		label = "failure"
		if !ran {
			label = "breaker_open"
		}
	}
	metrics.RecordProbe(ep.Path, label, timer.Elapsed())

	_ = err // the outcome already carries the failure detail callers need
	return outcome
}

func (s *Session) breakerSnapshots() []BreakerSnapshot {
	out := make([]BreakerSnapshot, 0, len(s.breakers))
	for endpoint, b := range s.breakers {
		out = append(out, BreakerSnapshot{
			Endpoint:           endpoint,
			State:              string(b.State()),
			Failures:           b.FailureCount(),
			SuccessStreak:      b.SuccessStreak(),
			NextProbeAllowedAt: b.NextProbeAllowedAt(),
		})
	}
	return out
}

func countOpenBreakers(snapshots []BreakerSnapshot) int {
	n := 0
	for _, b := range snapshots {
		if b.State == string(breaker.StateOpen) {
			n++
		}
	}
	return n
}

func (s *Session) runAutoFixes(ctx context.Context, v *Verdict) []AutoFixRecord {
	var records []AutoFixRecord
	for _, outcome := range v.Endpoints.Results {
		if outcome.Healthy {
			continue
		}
		breakerState := breaker.State(outcome.BreakerState)
		result, err := s.autofix.Apply(ctx, outcome, breakerState, v.Site.LatencyMs)
		if err != nil {
			s.logger.WithError(err).Warn("auto-fix application errored")
			continue
		}

		key := autofix.DeriveKey(outcome, breakerState)
		record := AutoFixRecord{
			Endpoint:   outcome.Endpoint,
			PatternKey: key,
			Action:     result.Action,
			Success:    result.Success,
			Message:    result.Message,
			AppliedAt:  time.Now(),
		}
		records = append(records, record)
		pattern, hasPattern := s.store.Get(key)
		metrics.RecordFixAttempt(key, fixOutcomeLabel(result.Success), pattern.SuccessRate)

		if s.broadcaster != nil {
			if err := s.broadcaster.BroadcastFixApplied(ctx, record); err != nil {
				s.logger.WithError(err).Warn("failed to broadcast fix applied")
			}
		}
		if hasPattern {
			_ = s.store.PublishSnapshot(ctx, pattern, time.Now().Unix())
		}
	}
	return records
}

func fixOutcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (s *Session) recordOutcome(v *Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Overall == scoring.OverallCritical || v.Overall == scoring.OverallError {
		s.consecutiveFailingSessions++
	} else {
		s.consecutiveFailingSessions = 0
	}

	s.latest = v
	s.history = append(s.history, v)
	if len(s.history) > s.cfg.MaxHistory {
		s.history = s.history[len(s.history)-s.cfg.MaxHistory:]
	}
}

func buildRecommendations(v *Verdict) []string {
	var recs []string
	for _, issue := range v.CriticalIssues {
		recs = append(recs, issue.SuggestedActions...)
	}
	if len(recs) == 0 && v.Overall != scoring.OverallExcellent {
		recs = append(recs, "Monitor the next scheduled check for trend confirmation")
	}
	return recs
}
