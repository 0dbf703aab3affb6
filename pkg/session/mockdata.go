package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
)

// MockModeHeader is the header the monitor attaches to mock-endpoint
// requests so the target serves its mock-data responder.
const MockModeHeader = "X-Mock-Mode"

// DefaultMockEndpoints is the spec's default mock-data endpoint set.
var DefaultMockEndpoints = []string{
	"/api/v1/analytics/mock",
	"/api/v1/campaigns/mock",
	"/api/v1/monitoring/mock",
	"/api/v1/alerts/mock",
}

// checkMockShape applies the endpoint-specific shape rule: the body must
// be non-empty and parse as JSON, and analytics mocks additionally must
// carry a "metrics" field or be a JSON array.
func checkMockShape(path string, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}

	var asArray []interface{}
	if err := json.Unmarshal(body, &asArray); err == nil {
		return nil
	}

	var asObject map[string]interface{}
	if err := json.Unmarshal(body, &asObject); err != nil {
		return fmt.Errorf("response is not parsable JSON: %w", err)
	}

	if strings.Contains(path, "analytics") {
		if _, ok := asObject["metrics"]; !ok {
			return fmt.Errorf("analytics mock missing required %q field", "metrics")
		}
	}
	return nil
}

func (s *Session) runMockDataSweep(ctx context.Context) MockDataSummary {
	endpoints := s.cfg.MockEndpoints
	if len(endpoints) == 0 {
		endpoints = DefaultMockEndpoints
	}

	results := make([]MockDataResult, 0, len(endpoints))
	passed := 0
	for _, path := range endpoints {
		result := s.checkMockEndpoint(ctx, path)
		if result.Passed {
			passed++
		}
		results = append(results, result)
	}

	pct := 100.0
	if len(results) > 0 {
		pct = 100.0 * float64(passed) / float64(len(results))
	}

	return MockDataSummary{WorkingPct: pct, Results: results}
}

func (s *Session) checkMockEndpoint(ctx context.Context, path string) MockDataResult {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.cfg.BaseURL+path, nil)
	if err != nil {
		return MockDataResult{Endpoint: path, Passed: false, Error: err.Error()}
	}
	req.Header.Set("User-Agent", prober.UserAgent)
	req.Header.Set(MockModeHeader, "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return MockDataResult{Endpoint: path, Passed: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return MockDataResult{Endpoint: path, Passed: false, Error: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return MockDataResult{Endpoint: path, Passed: false, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	if err := checkMockShape(path, body); err != nil {
		return MockDataResult{Endpoint: path, Passed: false, Error: err.Error()}
	}
	return MockDataResult{Endpoint: path, Passed: true}
}
