package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sharederrors "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/errors"
)

// summaryDoc is the compact summary written alongside the full verdict,
// per spec §6's reports/summary.json layout.
type summaryDoc struct {
	Timestamp          time.Time `json:"timestamp"`
	Overall            string    `json:"overall"`
	Score              int       `json:"score"`
	SiteAvailable      bool      `json:"siteAvailable"`
	EndpointsHealthy   int       `json:"endpointsHealthy"`
	PerformanceGrade   string    `json:"performanceGrade"`
	CriticalIssues     int       `json:"criticalIssues"`
	AutoFixesApplied   int       `json:"autoFixesApplied"`
}

// writeReports persists the verdict to reports/latest.json (overwritten
// each session), an append-only reports/health-<epoch>.json, and the
// compact reports/summary.json.
func (s *Session) writeReports(v *Verdict, nowEpoch int64) error {
	if err := os.MkdirAll(s.cfg.ReportsDir, 0o755); err != nil {
		return sharederrors.FailedToWithDetails("create reports directory", "session", s.cfg.ReportsDir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal verdict", err)
	}

	latestPath := filepath.Join(s.cfg.ReportsDir, "latest.json")
	if err := os.WriteFile(latestPath, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write latest.json", "session", latestPath, err)
	}

	historyPath := filepath.Join(s.cfg.ReportsDir, fmt.Sprintf("health-%d.json", nowEpoch))
	if err := os.WriteFile(historyPath, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write health history entry", "session", historyPath, err)
	}

	summary := summaryDoc{
		Timestamp:        v.Timestamp,
		Overall:          string(v.Overall),
		Score:            v.Score,
		SiteAvailable:    v.Site.Reachable,
		EndpointsHealthy: v.Endpoints.Healthy,
		PerformanceGrade: string(v.Performance.Grade),
		CriticalIssues:   len(v.CriticalIssues),
		AutoFixesApplied: len(v.AutoFixes),
	}
	summaryData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal summary.json", err)
	}
	summaryPath := filepath.Join(s.cfg.ReportsDir, "summary.json")
	if err := os.WriteFile(summaryPath, summaryData, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write summary.json", "session", summaryPath, err)
	}
	return nil
}
