// Package autofix implements pattern classification of a failing probe
// outcome, fix selection by historical success rate (falling back to a
// fixed remediation ladder), application against the target's admin
// surface, and outcome learning back into the knowledge store.
package autofix

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/breaker"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/knowledge"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
	sharedhttp "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/http"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/shared/logging"
)

// Action names, per the target-admin contract.
const (
	ActionForceHealthCheck   = "force-health-check"
	ActionClearCache         = "clear-cache"
	ActionWarmUpApplication  = "warm-up-application"
	ActionResetCircuitBreaker = "reset-circuit-breaker"
	ActionRestartService     = "restart-service"
)

// fallbackLadder is the fixed order tried when no high-confidence pattern
// is on record for a key.
var fallbackLadder = []string{
	ActionForceHealthCheck,
	ActionClearCache,
	ActionWarmUpApplication,
	ActionResetCircuitBreaker,
}

// successRateThreshold gates whether a stored pattern that has been applied
// at least once is trusted over the fallback ladder.
const successRateThreshold = 0.7

// Guard rails for the engine's own breaker.
const (
	EngineFailureThreshold uint32 = 5
	EngineRecoveryTimeout         = 60 * time.Second
)

// DeriveKey classifies a probe outcome into a stable pattern key, applying
// the priority ladder in order: first match wins.
func DeriveKey(outcome prober.Outcome, breakerState breaker.State) string {
	switch outcome.Status {
	case 503:
		return "service-unavailable"
	case 502:
		return "bad-gateway"
	case 500:
		return "internal-server-error"
	case 429:
		return "rate-limit-exceeded"
	case 404:
		return "not-found"
	}

	errLower := strings.ToLower(outcome.Error)
	switch {
	case strings.Contains(errLower, "timeout"):
		return "timeout-error"
	case strings.Contains(errLower, "econnrefused"), strings.Contains(errLower, "connection refused"):
		return "connection-refused"
	case strings.Contains(errLower, "enotfound"), strings.Contains(errLower, "dns"):
		return "dns-resolution-error"
	}

	if outcome.LatencyMs > 10000 {
		return "slow-response"
	}
	if breakerState == breaker.StateOpen {
		return "circuit-breaker-open"
	}
	return "unknown-error"
}

// Result is the outcome of applying a single fix action.
type Result struct {
	Action  string
	Success bool
	Message string
}

// Engine applies fixes against the target's admin endpoints, guarded by
// its own breaker to prevent remediation storms.
type Engine struct {
	baseURL string
	store   *knowledge.Store
	gate    *breaker.Breaker
	client  *http.Client
	logger  *logrus.Entry

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewEngine builds an Engine targeting baseURL, backed by store and the
// given endpoint breaker registry (for reset-circuit-breaker).
func NewEngine(baseURL string, store *knowledge.Store, breakers map[string]*breaker.Breaker, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		baseURL:  baseURL,
		store:    store,
		gate:     breaker.New("autofix-engine", EngineFailureThreshold, 1, EngineRecoveryTimeout, logger),
		client:   sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		logger:   logger.WithFields(logging.AutoFixFields("init", "").ToLogrus()),
		breakers: breakers,
	}
}

// GateOpen reports whether the engine's own guard-rail breaker is open,
// meaning no fix attempts will be made this session.
func (e *Engine) GateOpen() bool {
	return e.gate.State() == breaker.StateOpen
}

// Apply classifies outcome, selects a fix action (by stored success rate or
// the fallback ladder), applies it, and records the observed outcome back
// into the knowledge store.
func (e *Engine) Apply(ctx context.Context, outcome prober.Outcome, breakerState breaker.State, baselineLatencyMs int64) (Result, error) {
	if e.GateOpen() {
		return Result{Success: false, Message: "fix engine breaker open, no fix attempted"}, nil
	}

	key := DeriveKey(outcome, breakerState)

	var result Result
	err := e.gate.Execute(ctx, func(ctx context.Context) error {
		result = e.selectAndApply(ctx, key, outcome, baselineLatencyMs)
		if !result.Success {
			return fmt.Errorf("fix action %q for pattern %q did not succeed", result.Action, key)
		}
		return nil
	})
	if err != nil && result.Action == "" {
		return Result{Success: false, Message: "fix engine breaker open, no fix attempted"}, nil
	}
	return result, nil
}

func (e *Engine) selectAndApply(ctx context.Context, key string, outcome prober.Outcome, baselineLatencyMs int64) Result {
	metadata := knowledge.Metadata{
		Severity:  severityFor(outcome),
		Endpoint:  outcome.Endpoint,
		ErrorType: key,
		LatencyMs: outcome.LatencyMs,
	}

	if existing, ok := e.store.Get(key); ok && existing.SuccessRate > successRateThreshold && existing.AppliedCount >= 1 {
		result := e.applyAction(ctx, existing.Action, key, outcome.Endpoint, baselineLatencyMs)
		e.store.Record(key, existing.Action, result.Success, metadata)
		e.logger.WithFields(logging.AutoFixFields("apply-known", key).ToLogrus()).
			WithField("success", result.Success).Info("applied known fix pattern")
		return result
	}

	for _, action := range fallbackLadder {
		result := e.applyAction(ctx, action, key, outcome.Endpoint, baselineLatencyMs)
		e.store.Record(key, action, result.Success, metadata)
		if result.Success {
			e.logger.WithFields(logging.AutoFixFields("apply-fallback", key).ToLogrus()).
				WithField("action", action).Info("fallback ladder fix succeeded")
			return result
		}
	}

	e.logger.WithFields(logging.AutoFixFields("apply-exhausted", key).ToLogrus()).
		Warn("fallback ladder exhausted without success")
	return Result{Action: ActionRestartService, Success: false, Message: "remote service cannot be restarted"}
}

func severityFor(outcome prober.Outcome) knowledge.Severity {
	switch {
	case outcome.Status >= 500, outcome.Status == 429:
		return knowledge.SeverityHigh
	case outcome.LatencyMs > 10000:
		return knowledge.SeverityMedium
	default:
		return knowledge.SeverityLow
	}
}

func (e *Engine) applyAction(ctx context.Context, action, key, endpoint string, baselineLatencyMs int64) Result {
	switch action {
	case ActionForceHealthCheck:
		return e.forceHealthCheck(ctx, endpoint)
	case ActionClearCache:
		return e.clearCache(ctx, key)
	case ActionWarmUpApplication:
		return e.warmUpApplication(ctx, baselineLatencyMs)
	case ActionResetCircuitBreaker:
		return e.resetCircuitBreaker(endpoint)
	case ActionRestartService:
		return Result{Action: ActionRestartService, Success: false, Message: "remote service cannot be restarted"}
	default:
		return Result{Action: action, Success: false, Message: "unknown action"}
	}
}

func (e *Engine) forceHealthCheck(ctx context.Context, endpoint string) Result {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s%s?force=true&t=%d", e.baseURL, endpoint, time.Now().Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Action: ActionForceHealthCheck, Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", prober.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Action: ActionForceHealthCheck, Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return Result{Action: ActionForceHealthCheck, Success: success, Message: fmt.Sprintf("status %d", resp.StatusCode)}
}

func (e *Engine) clearCache(ctx context.Context, key string) Result {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/v1/admin/clear-cache", nil)
	if err != nil {
		return Result{Action: ActionClearCache, Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", prober.UserAgent)
	req.Header.Set("X-Auto-Fix", "true")
	req.Header.Set("X-Fix-Pattern", key)

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Action: ActionClearCache, Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	return Result{Action: ActionClearCache, Success: success, Message: fmt.Sprintf("status %d", resp.StatusCode)}
}

func (e *Engine) warmUpApplication(ctx context.Context, baselineLatencyMs int64) Result {
	warmUpPaths := []string{"/", "/api/health", "/api/v1/status"}

	var wg sync.WaitGroup
	for _, path := range warmUpPaths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.baseURL+p, nil)
			if err != nil {
				return
			}
			req.Header.Set("User-Agent", prober.UserAgent)
			resp, err := e.client.Do(req)
			if err == nil {
				resp.Body.Close()
			}
		}(path)
	}
	wg.Wait()

	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(testCtx, http.MethodGet, e.baseURL+"/", nil)
	if err != nil {
		return Result{Action: ActionWarmUpApplication, Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", prober.UserAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Action: ActionWarmUpApplication, Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()
	testLatencyMs := time.Since(start).Milliseconds()

	success := baselineLatencyMs > 0 && float64(testLatencyMs) < 0.8*float64(baselineLatencyMs)
	return Result{
		Action:  ActionWarmUpApplication,
		Success: success,
		Message: fmt.Sprintf("post-warm-up latency %dms vs baseline %dms", testLatencyMs, baselineLatencyMs),
	}
}

func (e *Engine) resetCircuitBreaker(endpoint string) Result {
	e.mu.Lock()
	b, ok := e.breakers[endpoint]
	e.mu.Unlock()

	if !ok {
		return Result{Action: ActionResetCircuitBreaker, Success: false, Message: "no breaker registered for endpoint"}
	}
	b.Reset()
	return Result{Action: ActionResetCircuitBreaker, Success: true, Message: "breaker reset"}
}
