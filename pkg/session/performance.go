package session

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/perf"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/prober"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/scoring"
	sharedmath "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/math"
)

// perfSampleCount and perfSampleSpacing are the spec's fixed performance
// sampling parameters: 5 sequential GETs of "/", 1s apart.
const (
	perfSampleCount   = 5
	perfSampleSpacing = 1 * time.Second
)

func (s *Session) runPerformanceSampling(ctx context.Context) PerformanceResult {
	samples := make([]PerfSampleOut, 0, perfSampleCount)
	latencies := make([]float64, 0, perfSampleCount)
	violations := 0
	successful := 0

	for i := 0; i < perfSampleCount; i++ {
		if i > 0 {
			timer := time.NewTimer(perfSampleSpacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				i = perfSampleCount
				continue
			case <-timer.C:
			}
		}

		sample, ok := s.sampleOnce(ctx)
		samples = append(samples, sample)
		latencies = append(latencies, float64(sample.LatencyMs))
		if ok {
			successful++
		}
		if !sample.WithinSLA {
			violations++
		}

		s.perfBuffer.Add(perf.Sample{
			Timestamp:     time.Now(),
			Endpoint:      "/",
			LatencyMs:     sample.LatencyMs,
			WithinSLA:     sample.WithinSLA,
			Status:        sample.Status,
			ContentLength: sample.ContentLength,
		})
		metrics.RecordSLASample("/", sample.WithinSLA)
	}

	avg := int64(sharedmath.Mean(latencies))
	availability := 100.0 * float64(successful) / float64(perfSampleCount)
	grade := scoring.PerformanceGrade(violations, avg, s.cfg.SLAThresholdMs, availability)

	return PerformanceResult{
		AverageLatencyMs: avg,
		SLAViolations:    violations,
		Availability:     availability,
		Grade:            grade,
		Samples:          samples,
	}
}

func (s *Session) sampleOnce(ctx context.Context) (PerfSampleOut, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.cfg.BaseURL+"/", nil)
	if err != nil {
		return PerfSampleOut{LatencyMs: time.Since(start).Milliseconds()}, false
	}
	req.Header.Set("User-Agent", prober.UserAgent)

	resp, err := s.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return PerfSampleOut{LatencyMs: latency, WithinSLA: latency <= s.cfg.SLAThresholdMs}, false
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return PerfSampleOut{
		LatencyMs:     latency,
		WithinSLA:     latency <= s.cfg.SLAThresholdMs,
		Status:        resp.StatusCode,
		ContentLength: int64(len(body)),
	}, success
}
