package slamonitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	sharederrors "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/errors"
	sharedmath "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/math"
)

// persistTick writes reports/performance/latest.json (overwritten each
// tick) and appends to the current day's
// reports/performance/daily-summary-YYYY-MM-DD.json journal.
func (m *Monitor) persistTick(tick TickResult) error {
	dir := filepath.Join(m.cfg.ReportsDir, "performance")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sharederrors.FailedToWithDetails("create performance reports directory", "sla_monitor", dir, err)
	}

	data, err := json.MarshalIndent(tick, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal sla monitor tick", err)
	}

	latestPath := filepath.Join(dir, "latest.json")
	if err := os.WriteFile(latestPath, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write performance latest.json", "sla_monitor", latestPath, err)
	}

	return m.appendDailySummary(dir, tick)
}

func (m *Monitor) appendDailySummary(dir string, tick TickResult) error {
	path := filepath.Join(dir, "daily-summary-"+tick.Timestamp.Format("2006-01-02")+".json")

	var ticks []TickResult
	if existing, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(existing, &ticks)
	}
	ticks = append(ticks, tick)

	data, err := json.MarshalIndent(ticks, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal daily sla summary", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write daily sla summary", "sla_monitor", path, err)
	}
	return nil
}

// Report implements the `report <hours>` CLI entry point: an aggregated
// rollup over every in-memory tick recorded within the trailing window.
func (m *Monitor) Report(hours float64) RollupReport {
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))

	m.mu.Lock()
	var windowed []TickResult
	for _, t := range m.history {
		if t.Timestamp.After(cutoff) {
			windowed = append(windowed, t)
		}
	}
	m.mu.Unlock()

	return rollup(hours, windowed)
}

// ReportFromDisk implements the `report <hours>` CLI entry point for a
// process that isn't the one running the monitor loop: it rebuilds the
// rollup from the daily-summary journal files under reportsDir, which is
// the only state that survives across process restarts.
func ReportFromDisk(reportsDir string, hours float64) (RollupReport, error) {
	dir := filepath.Join(reportsDir, "performance")
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return rollup(hours, nil), nil
		}
		return RollupReport{}, sharederrors.FailedToWithDetails("read performance reports directory", "sla_monitor", dir, err)
	}

	var windowed []TickResult
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) < len("daily-summary-") || entry.Name()[:len("daily-summary-")] != "daily-summary-" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var ticks []TickResult
		if err := json.Unmarshal(data, &ticks); err != nil {
			continue
		}
		for _, t := range ticks {
			if t.Timestamp.After(cutoff) {
				windowed = append(windowed, t)
			}
		}
	}

	return rollup(hours, windowed), nil
}

func rollup(hours float64, windowed []TickResult) RollupReport {
	report := RollupReport{WindowHours: hours, Ticks: len(windowed)}
	if len(windowed) == 0 {
		return report
	}

	var latencies, availabilities []float64
	for _, t := range windowed {
		latencies = append(latencies, float64(t.Overall.AverageLatencyMs))
		availabilities = append(availabilities, t.Overall.Availability)
		switch t.Compliance {
		case ComplianceViolated:
			report.ViolatedTicks++
		case ComplianceDegraded:
			report.DegradedTicks++
		case ComplianceCompliant:
			report.CompliantTicks++
		}
	}

	report.AverageLatencyMs = int64(sharedmath.Mean(latencies))
	report.P95Ms = int64(sharedmath.Percentile(latencies, 95))
	report.P99Ms = int64(sharedmath.Percentile(latencies, 99))
	report.AverageAvailability = sharedmath.Mean(availabilities)
	return report
}
