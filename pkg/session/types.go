// Package session implements the probe session (spec component C3): one
// full health sweep across all endpoints, the optional UI test harness,
// the accessibility rubric, performance sampling, mock-data verification,
// auto-fix, scoring, and verdict publication. One session runs per
// scheduler tick, guarded against reentrancy.
package session

import (
	"time"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/scoring"
)

// SiteResult is the outcome of the baseline "/" reachability probe.
type SiteResult struct {
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latencyMs"`
	Status    int    `json:"status"`
	Error     string `json:"error,omitempty"`
}

// EndpointsSummary aggregates the configured-endpoint sweep.
type EndpointsSummary struct {
	Healthy int              `json:"healthy"`
	Total   int              `json:"total"`
	Percent float64          `json:"percent"`
	Results []prober.Outcome `json:"results"`
}

// AccessibilityResult is the fixed-rubric score over the homepage HTML.
type AccessibilityResult struct {
	Score  float64         `json:"score"`
	Passed bool            `json:"passed"`
	Checks map[string]bool `json:"checks"`
}

// UIResult is the outcome of the optional UI test-harness subprocess,
// folded together with the accessibility rubric for scoring purposes.
type UIResult struct {
	Overall       string                 `json:"overall"`
	ExitCode      int                    `json:"exitCode"`
	TimedOut      bool                   `json:"timeout"`
	DurationMs    int64                  `json:"durationMs"`
	Report        map[string]interface{} `json:"report,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Accessibility AccessibilityResult    `json:"accessibility"`
}

// PerformanceResult is the aggregated outcome of the 5-sample sweep of "/".
type PerformanceResult struct {
	AverageLatencyMs int64          `json:"averageLatencyMs"`
	SLAViolations    int            `json:"slaViolations"`
	Availability     float64        `json:"availability"`
	Grade            scoring.Grade  `json:"grade"`
	Samples          []PerfSampleOut `json:"samples"`
}

// PerfSampleOut is a single recorded performance sample, as reported in a
// verdict (distinct from perf.Sample, which additionally carries the
// timestamp used for ring-buffer bookkeeping).
type PerfSampleOut struct {
	LatencyMs     int64 `json:"latencyMs"`
	WithinSLA     bool  `json:"withinSLA"`
	Status        int   `json:"status"`
	ContentLength int64 `json:"contentLength"`
}

// MockDataResult is the per-endpoint outcome of a mock-data shape check.
type MockDataResult struct {
	Endpoint string `json:"endpoint"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
}

// MockDataSummary aggregates the mock-endpoint sweep.
type MockDataSummary struct {
	WorkingPct float64          `json:"workingPct"`
	Results    []MockDataResult `json:"results"`
}

// AutoFixRecord is a single applied (or attempted) fix, as reported in a
// verdict and broadcast on the coordination bus.
type AutoFixRecord struct {
	Endpoint    string    `json:"endpoint"`
	PatternKey  string    `json:"patternKey"`
	Action      string    `json:"action"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	AppliedAt   time.Time `json:"appliedAt"`
}

// CriticalIssue is a derived (not stored long-term) health concern.
type CriticalIssue struct {
	Kind                    string   `json:"kind"`
	Severity                string   `json:"severity"`
	Message                 string   `json:"message"`
	RequiresHumanIntervention bool   `json:"requiresHumanIntervention"`
	AffectedEndpoints       []string `json:"affectedEndpoints"`
	SuggestedActions        []string `json:"suggestedActions"`
}

// BreakerSnapshot is a point-in-time view of one endpoint's circuit
// breaker, taken at verdict-publication time.
type BreakerSnapshot struct {
	Endpoint           string    `json:"endpoint"`
	State              string    `json:"state"`
	Failures           uint32    `json:"failures"`
	SuccessStreak      uint32    `json:"successStreak"`
	NextProbeAllowedAt time.Time `json:"nextProbeAllowedAt,omitempty"`
}

// Verdict is the immutable, once-per-session health evaluation result.
type Verdict struct {
	CheckID          string            `json:"checkId"`
	Timestamp        time.Time         `json:"timestamp"`
	Overall          scoring.Overall   `json:"overall"`
	Score            int               `json:"score"`
	Site             SiteResult        `json:"site"`
	Endpoints        EndpointsSummary  `json:"endpoints"`
	UI               UIResult          `json:"ui"`
	Performance      PerformanceResult `json:"performance"`
	MockData         MockDataSummary   `json:"mockData"`
	AutoFixes        []AutoFixRecord   `json:"autoFixes"`
	CriticalIssues   []CriticalIssue   `json:"criticalIssues"`
	Recommendations  []string          `json:"recommendations"`
	BreakerSnapshots []BreakerSnapshot `json:"breakerSnapshots"`
}
