package http

import (
	"testing"
	"time"
)

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	if config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Timeout)
	}
	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v, want 3", config.MaxRetries)
	}
	if config.DisableSSLVerification {
		t.Error("DisableSSLVerification should default to false")
	}
	if config.MaxIdleConns != 10 {
		t.Errorf("MaxIdleConns = %v, want 10", config.MaxIdleConns)
	}
}

func TestNewClient(t *testing.T) {
	config := DefaultClientConfig()
	client := NewClient(config)

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.Timeout != config.Timeout {
		t.Errorf("client.Timeout = %v, want %v", client.Timeout, config.Timeout)
	}
}

func TestNewClientWithTimeout(t *testing.T) {
	client := NewClientWithTimeout(5 * time.Second)

	if client.Timeout != 5*time.Second {
		t.Errorf("client.Timeout = %v, want 5s", client.Timeout)
	}
}

func TestNewDefaultClient(t *testing.T) {
	client := NewDefaultClient()

	if client.Timeout != DefaultClientConfig().Timeout {
		t.Errorf("client.Timeout = %v, want %v", client.Timeout, DefaultClientConfig().Timeout)
	}
}

func TestSlackClientConfig(t *testing.T) {
	config := SlackClientConfig()

	if config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", config.Timeout)
	}
	if config.MaxRetries != 2 {
		t.Errorf("MaxRetries = %v, want 2", config.MaxRetries)
	}
}

func TestPrometheusClientConfig(t *testing.T) {
	config := PrometheusClientConfig(20 * time.Second)

	if config.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", config.Timeout)
	}
	if config.ResponseHeaderTimeout != 10*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want 10s", config.ResponseHeaderTimeout)
	}
}

func TestTargetClientConfig(t *testing.T) {
	config := TargetClientConfig(9 * time.Second)

	if config.Timeout != 9*time.Second {
		t.Errorf("Timeout = %v, want 9s", config.Timeout)
	}
	if config.ResponseHeaderTimeout != 3*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want 3s", config.ResponseHeaderTimeout)
	}
}

func TestNewClient_DisableSSLVerification(t *testing.T) {
	config := DefaultClientConfig()
	config.DisableSSLVerification = true
	client := NewClient(config)

	if client.Transport == nil {
		t.Fatal("NewClient() with DisableSSLVerification should still set a transport")
	}
}
