package scoring

import "testing"

func TestScore_SteadyState(t *testing.T) {
	m := Measurements{
		SiteReachable:           true,
		BaselineLatencyMs:       400,
		SLAThresholdMs:          3000,
		EndpointsHealthyPct:     100,
		UIOverall:               "passed",
		AccessibilityScore:      1.0,
		SLAViolations:           0,
		PerformanceAvgLatencyMs: 400,
		PerformanceAvailability: 100,
		MockDataWorkingPct:      100,
		OpenBreakers:            0,
		TotalBreakers:           7,
	}

	score, overall := Score(m)
	if score < 95 {
		t.Errorf("score = %d, want >= 95", score)
	}
	if overall != OverallExcellent {
		t.Errorf("overall = %v, want excellent", overall)
	}
}

func TestScore_SLABreach(t *testing.T) {
	// Scenario 3: 5 samples [1800,3200,3400,3100,3500] against 3000ms SLA.
	m := Measurements{
		SiteReachable:           true,
		BaselineLatencyMs:       3200,
		SLAThresholdMs:          3000,
		EndpointsHealthyPct:     100,
		UIOverall:               "passed",
		AccessibilityScore:      1.0,
		SLAViolations:           4,
		PerformanceAvgLatencyMs: 3000,
		PerformanceAvailability: 100,
		MockDataWorkingPct:      100,
		OpenBreakers:            0,
		TotalBreakers:           7,
	}

	grade := PerformanceGrade(m.SLAViolations, m.PerformanceAvgLatencyMs, m.SLAThresholdMs, m.PerformanceAvailability)
	if grade != GradeD {
		t.Errorf("grade = %v, want D", grade)
	}
}

func TestScore_ClampedToRange(t *testing.T) {
	m := Measurements{
		SiteReachable:           false,
		BaselineLatencyMs:       9000,
		SLAThresholdMs:          3000,
		EndpointsHealthyPct:     0,
		UIOverall:               "error",
		AccessibilityScore:      0,
		SLAViolations:           10,
		PerformanceAvailability: 0,
		MockDataWorkingPct:      0,
		OpenBreakers:            7,
		TotalBreakers:           7,
	}

	score, overall := Score(m)
	if score < 0 || score > 100 {
		t.Errorf("score = %d, want in [0,100]", score)
	}
	if overall != OverallCritical {
		t.Errorf("overall = %v, want critical", overall)
	}
}

func TestPerformanceGrade(t *testing.T) {
	tests := []struct {
		name         string
		violations   int
		avgLatencyMs int64
		slaMs        int64
		availability float64
		expected     Grade
	}{
		{name: "A: zero violations, fast, full availability", violations: 0, avgLatencyMs: 1000, slaMs: 3000, availability: 100, expected: GradeA},
		{name: "B: one violation within bound", violations: 1, avgLatencyMs: 2000, slaMs: 3000, availability: 95, expected: GradeB},
		{name: "C: two violations at SLA", violations: 2, avgLatencyMs: 3000, slaMs: 3000, availability: 85, expected: GradeC},
		{name: "D: availability above floor but otherwise poor", violations: 5, avgLatencyMs: 4000, slaMs: 3000, availability: 65, expected: GradeD},
		{name: "F: availability below floor", violations: 5, avgLatencyMs: 5000, slaMs: 3000, availability: 0, expected: GradeF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PerformanceGrade(tt.violations, tt.avgLatencyMs, tt.slaMs, tt.availability)
			if got != tt.expected {
				t.Errorf("PerformanceGrade() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestScore_PerformanceAvailabilityZero(t *testing.T) {
	// Boundary: 0 successful samples -> grade F.
	grade := PerformanceGrade(5, 9000, 3000, 0)
	if grade != GradeF {
		t.Errorf("grade = %v, want F for zero availability", grade)
	}
}

func TestScore_AccessibilityBoundary(t *testing.T) {
	// Exactly 0.8 passes (strictly <0.8 fails) -- the UI dimension only
	// deducts when AccessibilityScore < 0.8.
	passing := Measurements{
		SiteReachable: true, SLAThresholdMs: 3000, EndpointsHealthyPct: 100,
		UIOverall: "passed", AccessibilityScore: 0.8, PerformanceAvailability: 100,
		MockDataWorkingPct: 100, TotalBreakers: 1,
	}
	failing := passing
	failing.AccessibilityScore = 0.79

	scorePass, _ := Score(passing)
	scoreFail, _ := Score(failing)
	if scoreFail >= scorePass {
		t.Errorf("expected a deduction below the 0.8 accessibility threshold: pass=%d fail=%d", scorePass, scoreFail)
	}
}
