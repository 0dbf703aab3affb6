package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFields(t *testing.T) {
	fields := NewFields()
	if fields == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(fields) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(fields))
	}
}

func TestStandardFields_Component(t *testing.T) {
	fields := NewFields().Component("test-component")
	if fields["component"] != "test-component" {
		t.Errorf("Component() = %v, want %v", fields["component"], "test-component")
	}
}

func TestStandardFields_Operation(t *testing.T) {
	fields := NewFields().Operation("probe")
	if fields["operation"] != "probe" {
		t.Errorf("Operation() = %v, want %v", fields["operation"], "probe")
	}
}

func TestStandardFields_Resource(t *testing.T) {
	fields := NewFields().Resource("endpoint", "/api/health")
	if fields["resource_type"] != "endpoint" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "endpoint")
	}
	if fields["resource_name"] != "/api/health" {
		t.Errorf("Resource() resource_name = %v, want %v", fields["resource_name"], "/api/health")
	}
}

func TestStandardFields_ResourceWithoutName(t *testing.T) {
	fields := NewFields().Resource("endpoint", "")
	if fields["resource_type"] != "endpoint" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "endpoint")
	}
	if _, exists := fields["resource_name"]; exists {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestStandardFields_Duration(t *testing.T) {
	duration := 150 * time.Millisecond
	fields := NewFields().Duration(duration)
	if fields["duration_ms"] != int64(150) {
		t.Errorf("Duration() = %v, want %v", fields["duration_ms"], int64(150))
	}
}

func TestStandardFields_Error(t *testing.T) {
	err := errors.New("test error")
	fields := NewFields().Error(err)
	if fields["error"] != "test error" {
		t.Errorf("Error() = %v, want %v", fields["error"], "test error")
	}
}

func TestStandardFields_ErrorNil(t *testing.T) {
	fields := NewFields().Error(nil)
	if _, exists := fields["error"]; exists {
		t.Error("Error(nil) should not set error field")
	}
}

func TestStandardFields_ChainedCalls(t *testing.T) {
	fields := NewFields().
		Component("session").
		Operation("probe").
		Resource("endpoint", "/api/health").
		Duration(100 * time.Millisecond).
		Count(5)

	expected := map[string]interface{}{
		"component":     "session",
		"operation":     "probe",
		"resource_type": "endpoint",
		"resource_name": "/api/health",
		"duration_ms":   int64(100),
		"count":         5,
	}

	for key, expectedValue := range expected {
		if fields[key] != expectedValue {
			t.Errorf("Chained calls: %s = %v, want %v", key, fields[key], expectedValue)
		}
	}
}

func TestStandardFields_ToLogrus(t *testing.T) {
	fields := NewFields().Component("session").Operation("probe")
	logrusFields := fields.ToLogrus()

	if logrusFields == nil {
		t.Fatal("ToLogrus() should not return nil")
	}
	if logrusFields["component"] != "session" {
		t.Errorf("ToLogrus() component = %v, want %v", logrusFields["component"], "session")
	}
}

func TestHTTPFields(t *testing.T) {
	fields := HTTPFields("GET", "/api/v1/analytics", 200)

	expected := map[string]interface{}{
		"component":   "http",
		"method":      "GET",
		"url":         "/api/v1/analytics",
		"status_code": 200,
	}

	for key, expectedValue := range expected {
		if fields[key] != expectedValue {
			t.Errorf("HTTPFields() %s = %v, want %v", key, fields[key], expectedValue)
		}
	}
}

func TestSessionFields(t *testing.T) {
	fields := SessionFields("publish", "check-123")

	expected := map[string]interface{}{
		"component":     "session",
		"operation":     "publish",
		"resource_type": "check",
		"resource_name": "check-123",
	}

	for key, expectedValue := range expected {
		if fields[key] != expectedValue {
			t.Errorf("SessionFields() %s = %v, want %v", key, fields[key], expectedValue)
		}
	}
}

func TestBreakerFields(t *testing.T) {
	fields := BreakerFields("trip", "/api/v1/status")

	if fields["component"] != "breaker" {
		t.Errorf("BreakerFields() component = %v, want breaker", fields["component"])
	}
	if fields["resource_name"] != "/api/v1/status" {
		t.Errorf("BreakerFields() resource_name = %v, want /api/v1/status", fields["resource_name"])
	}
}

func TestPerformanceFields(t *testing.T) {
	duration := 250 * time.Millisecond
	fields := PerformanceFields("query_target", duration, true)

	expected := map[string]interface{}{
		"component":   "performance",
		"operation":   "query_target",
		"duration_ms": int64(250),
		"success":     true,
	}

	for key, expectedValue := range expected {
		if fields[key] != expectedValue {
			t.Errorf("PerformanceFields() %s = %v, want %v", key, fields[key], expectedValue)
		}
	}
}
