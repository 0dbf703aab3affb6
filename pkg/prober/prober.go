// Package prober implements the single-request health probe: one GET
// against a target endpoint, classified into a healthy/unhealthy outcome
// with latency and error-kind detail.
package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sharedhttp "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/http"
)

// UserAgent is the fixed identifying header sent on every probe request.
const UserAgent = "WarRoom-EnhancedHealthMonitor/2.0"

// Endpoint is the immutable descriptor for a single monitored path.
type Endpoint struct {
	Path           string
	Name           string
	Critical       bool
	Timeout        time.Duration
	ExpectedStatus []int
	Headers        map[string]string
}

// Outcome is the result of a single probe.
type Outcome struct {
	Endpoint      string
	Healthy       bool
	Status        int
	LatencyMs     int64
	ContentLength int64
	ContentType   string
	Error         string
	BreakerState  string
}

// Probe performs one GET at baseURL+endpoint.Path with endpoint.Timeout,
// classifying the result per the healthy/unhealthy rules: any status < 500
// is network-successful, but healthiness additionally requires the status
// fall within ExpectedStatus (or the 2xx-3xx default).
func Probe(ctx context.Context, baseURL string, endpoint Endpoint) Outcome {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, endpoint.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+endpoint.Path, nil)
	if err != nil {
		return Outcome{
			Endpoint:  endpoint.Path,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range endpoint.Headers {
		req.Header.Set(k, v)
	}

	client := sharedhttp.NewClient(sharedhttp.TargetClientConfig(endpoint.Timeout))
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return Outcome{
				Endpoint:  endpoint.Path,
				LatencyMs: latency,
				Error:     fmt.Sprintf("timeout after %s", endpoint.Timeout),
			}
		}
		return Outcome{
			Endpoint:  endpoint.Path,
			LatencyMs: latency,
			Error:     err.Error(),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	outcome := Outcome{
		Endpoint:      endpoint.Path,
		Status:        resp.StatusCode,
		LatencyMs:     latency,
		ContentLength: int64(len(body)),
		ContentType:   resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode >= 500 {
		outcome.Error = fmt.Sprintf("server error: status %d", resp.StatusCode)
		return outcome
	}

	outcome.Healthy = isExpectedStatus(resp.StatusCode, endpoint.ExpectedStatus)
	if !outcome.Healthy {
		outcome.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return outcome
}

func isExpectedStatus(status int, expected []int) bool {
	if len(expected) == 0 {
		return status >= 200 && status < 400
	}
	for _, s := range expected {
		if s == status {
			return true
		}
	}
	return false
}

// IsTimeout reports whether an outcome's error string indicates the probe
// timed out, per the kind=timeout classification rule.
func IsTimeout(outcome Outcome) bool {
	return strings.Contains(strings.ToLower(outcome.Error), "timeout")
}
