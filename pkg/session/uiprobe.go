package session

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"
)

// DefaultUIProbeTimeout is the hard wall-clock ceiling on the UI test
// harness subprocess.
const DefaultUIProbeTimeout = 10 * time.Minute

// UIProbeConfig describes the opaque external UI test harness: an
// executable returning {exitCode, parseableReport} on stdout.
type UIProbeConfig struct {
	Enabled bool
	Command string
	Args    []string
	Timeout time.Duration
}

// runUIProbe spawns the configured harness, enforcing the hard wall-clock
// ceiling with a SIGKILL on overrun. It never attempts to parse partial
// output while the process is still running.
func (s *Session) runUIProbe(ctx context.Context) UIResult {
	cfg := s.cfg.UIProbe
	if !cfg.Enabled {
		return UIResult{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultUIProbeTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, cfg.Command, cfg.Args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return UIResult{
			Overall:    "error",
			ExitCode:   124,
			TimedOut:   true,
			DurationMs: duration.Milliseconds(),
			Error:      "ui probe exceeded the " + timeout.String() + " wall-clock ceiling, killed",
		}
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return UIResult{
				Overall:    "error",
				ExitCode:   -1,
				DurationMs: duration.Milliseconds(),
				Error:      runErr.Error(),
			}
		}
	}

	report, parseErr := parseUIReport(out.Bytes())
	overall := "passed"
	switch {
	case parseErr != nil:
		overall = "error"
	case exitCode != 0:
		overall = "failed"
	}

	result := UIResult{
		Overall:    overall,
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
		Report:     report,
	}
	if parseErr != nil {
		result.Error = parseErr.Error()
	}
	return result
}

func parseUIReport(out []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var report map[string]interface{}
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, err
	}
	return report, nil
}
