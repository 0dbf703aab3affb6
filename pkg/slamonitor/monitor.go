package slamonitor

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/perf"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
	sharedhttp "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/http"
	sharedmath "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/math"
)

// Defaults per spec §4.8.
const (
	DefaultInterval          = 5 * time.Minute
	DefaultSamplesPerTick    = 3
	DefaultRollingWindowTicks = 1
	DefaultToleranceFraction = 0.10
	DefaultCriticalFraction  = 0.20
	sampleSpacing            = 100 * time.Millisecond
	criticalPerfMultiplier   = 1.5
)

// Broadcaster is the coordination bus's outbound half, as seen by the SLA
// monitor: a best-effort performanceViolation broadcast.
type Broadcaster interface {
	BroadcastPerformanceViolation(ctx context.Context, alert Alert) error
}

// AlertDispatcher is the alert dispatcher's inbound half, as seen by the
// SLA monitor.
type AlertDispatcher interface {
	DispatchSLAAlert(ctx context.Context, alert Alert) error
}

// Config is the SLA monitor's independent configuration; it shares no
// mutable state with the probe session other than the SLA threshold
// value itself.
type Config struct {
	Endpoints          []string
	Interval           time.Duration
	SLAThresholdMs     int64
	ToleranceFraction  float64
	CriticalFraction   float64
	SamplesPerTick     int
	RollingWindowTicks int
	ReportsDir         string
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ToleranceFraction <= 0 {
		c.ToleranceFraction = DefaultToleranceFraction
	}
	if c.CriticalFraction <= 0 {
		c.CriticalFraction = DefaultCriticalFraction
	}
	if c.SamplesPerTick <= 0 {
		c.SamplesPerTick = DefaultSamplesPerTick
	}
	if c.RollingWindowTicks <= 0 {
		c.RollingWindowTicks = DefaultRollingWindowTicks
	}
	if len(c.Endpoints) == 0 {
		c.Endpoints = []string{"/", "/dashboard", "/api/health"}
	}
}

// maxTickHistory bounds the in-memory tick history used to serve the
// `report <hours>` rollup; the durable projection is the daily-summary
// journal on disk.
const maxTickHistory = 2000

// Monitor runs the independent SLA-compliance loop against baseURL.
type Monitor struct {
	baseURL     string
	cfg         Config
	client      *http.Client
	logger      *logrus.Entry
	broadcaster Broadcaster
	dispatcher  AlertDispatcher
	buffer      *perf.RingBuffer

	mu      sync.Mutex
	state   alertState
	history []TickResult
}

// New builds a Monitor. Unset Config fields take the spec's defaults.
func New(baseURL string, cfg Config, broadcaster Broadcaster, dispatcher AlertDispatcher, logger *logrus.Logger) *Monitor {
	cfg.applyDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Monitor{
		baseURL:     baseURL,
		cfg:         cfg,
		client:      sharedhttp.NewDefaultClient(),
		logger:      logger.WithField("component", "sla_monitor"),
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		buffer:      perf.NewRingBuffer(perf.DefaultCapacity),
	}
}

// Run ticks at the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopping, context cancelled")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	result := m.runTick(ctx)

	m.mu.Lock()
	m.history = append(m.history, result)
	if len(m.history) > maxTickHistory {
		m.history = m.history[len(m.history)-maxTickHistory:]
	}
	m.mu.Unlock()

	metrics.SetSLACompliance(1 - float64(result.Overall.Violations)/maxFloat(1, float64(result.Overall.Samples)))

	if err := m.persistTick(result); err != nil {
		m.logger.WithError(err).Error("failed to persist sla monitor tick")
	}

	m.evaluateAlerts(ctx, result)
}

func (m *Monitor) runTick(ctx context.Context) TickResult {
	now := time.Now()
	var perEndpoint []EndpointAggregate
	var allLatencies []float64
	totalSamples, totalSuccessful, totalViolations := 0, 0, 0

	for _, endpoint := range m.cfg.Endpoints {
		agg, latencies := m.sampleEndpoint(ctx, endpoint)
		perEndpoint = append(perEndpoint, agg)
		allLatencies = append(allLatencies, latencies...)
		totalSamples += agg.Samples
		totalSuccessful += agg.Successful
		totalViolations += agg.Violations
	}

	overall := EndpointAggregate{
		Endpoint:         "*",
		Samples:          totalSamples,
		Successful:       totalSuccessful,
		Availability:     ratioPct(totalSuccessful, totalSamples),
		AverageLatencyMs: int64(sharedmath.Mean(allLatencies)),
		P50Ms:            int64(sharedmath.Percentile(allLatencies, 50)),
		P95Ms:            int64(sharedmath.Percentile(allLatencies, 95)),
		P99Ms:            int64(sharedmath.Percentile(allLatencies, 99)),
		Violations:       totalViolations,
	}

	return TickResult{
		Timestamp:         now,
		Endpoints:         perEndpoint,
		Overall:           overall,
		Compliance:        classifyCompliance(totalViolations, totalSamples, m.cfg.ToleranceFraction, m.cfg.CriticalFraction),
		ToleranceFraction: m.cfg.ToleranceFraction,
	}
}

func (m *Monitor) sampleEndpoint(ctx context.Context, endpoint string) (EndpointAggregate, []float64) {
	latencies := make([]float64, 0, m.cfg.SamplesPerTick)
	successful := 0
	violations := 0

	for i := 0; i < m.cfg.SamplesPerTick; i++ {
		if i > 0 {
			timer := time.NewTimer(sampleSpacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				i = m.cfg.SamplesPerTick
				continue
			case <-timer.C:
			}
		}

		latencyMs, status, contentLength, ok := m.requestOnce(ctx, endpoint)
		latencies = append(latencies, float64(latencyMs))
		withinSLA := latencyMs <= m.cfg.SLAThresholdMs
		if ok {
			successful++
		}
		if !withinSLA {
			violations++
		}
		m.buffer.Add(perf.Sample{
			Timestamp:     time.Now(),
			Endpoint:      endpoint,
			LatencyMs:     latencyMs,
			WithinSLA:     withinSLA,
			Status:        status,
			ContentLength: contentLength,
		})
		metrics.RecordSLASample(endpoint, withinSLA)
	}

	samples := len(latencies)
	return EndpointAggregate{
		Endpoint:         endpoint,
		Samples:          samples,
		Successful:       successful,
		Availability:     ratioPct(successful, samples),
		AverageLatencyMs: int64(sharedmath.Mean(latencies)),
		P50Ms:            int64(sharedmath.Percentile(latencies, 50)),
		P95Ms:            int64(sharedmath.Percentile(latencies, 95)),
		P99Ms:            int64(sharedmath.Percentile(latencies, 99)),
		Violations:       violations,
	}, latencies
}

func (m *Monitor) requestOnce(ctx context.Context, endpoint string) (latencyMs int64, status int, contentLength int64, ok bool) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.baseURL+endpoint, nil)
	if err != nil {
		return time.Since(start).Milliseconds(), 0, 0, false
	}
	req.Header.Set("User-Agent", prober.UserAgent)

	resp, err := m.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return latency, 0, 0, false
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	return latency, resp.StatusCode, int64(len(body)), resp.StatusCode >= 200 && resp.StatusCode < 400
}

func classifyCompliance(violations, total int, tolerance, critical float64) Compliance {
	if total == 0 {
		return ComplianceViolated
	}
	fraction := float64(violations) / float64(total)
	switch {
	case fraction <= tolerance:
		return ComplianceCompliant
	case fraction <= critical:
		return ComplianceDegraded
	default:
		return ComplianceViolated
	}
}

func ratioPct(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100.0 * float64(successful) / float64(total)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// evaluateAlerts applies the edge-triggered alert rules of spec §4.8:
// each bit latches on entry and clears only on a subsequent compliant
// tick, which also fires a single performance-recovered info alert.
func (m *Monitor) evaluateAlerts(ctx context.Context, tick TickResult) {
	m.mu.Lock()
	prevState := m.state
	var fire []Alert

	if tick.Compliance == ComplianceViolated && !prevState.slaViolation {
		m.state.slaViolation = true
		fire = append(fire, Alert{Kind: AlertSLAViolation, Severity: "critical",
			Message: "SLA violation rate exceeded tolerance", Timestamp: tick.Timestamp, Tick: tick})
	}
	if float64(tick.Overall.AverageLatencyMs) > criticalPerfMultiplier*float64(m.cfg.SLAThresholdMs) && !prevState.criticalPerformance {
		m.state.criticalPerformance = true
		fire = append(fire, Alert{Kind: AlertCriticalPerformance, Severity: "critical",
			Message: "average latency exceeded 1.5x the SLA threshold", Timestamp: tick.Timestamp, Tick: tick})
	}
	if tick.Compliance == ComplianceDegraded && !prevState.degradedService {
		m.state.degradedService = true
		fire = append(fire, Alert{Kind: AlertDegradedService, Severity: "warning",
			Message: "SLA violation rate exceeded the degraded-service threshold", Timestamp: tick.Timestamp, Tick: tick})
	}

	if tick.Compliance == ComplianceCompliant && prevState.anySet() {
		m.state = alertState{}
		fire = append(fire, Alert{Kind: AlertPerformanceRecovered, Severity: "info",
			Message: "performance recovered to SLA compliance", Timestamp: tick.Timestamp, Tick: tick})
	}
	m.mu.Unlock()

	for _, alert := range fire {
		if m.dispatcher != nil {
			if err := m.dispatcher.DispatchSLAAlert(ctx, alert); err != nil {
				m.logger.WithError(err).Warn("failed to dispatch sla alert")
			}
		}
		if m.broadcaster != nil {
			if err := m.broadcaster.BroadcastPerformanceViolation(ctx, alert); err != nil {
				m.logger.WithError(err).Warn("failed to broadcast performance violation")
			}
		}
	}
}

// SetBroadcaster wires the coordination bus in after construction. Callers
// must set this before Run is first invoked.
func (m *Monitor) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Latest returns the most recently computed tick, or the zero value if
// none has run yet.
func (m *Monitor) Latest() TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return TickResult{}
	}
	return m.history[len(m.history)-1]
}
