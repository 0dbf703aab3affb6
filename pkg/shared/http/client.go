// Package http builds *http.Client instances with sane timeout and
// connection-pool defaults, and a handful of presets for the external
// services the supervisor talks to (Slack, Prometheus, the target site).
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig controls timeout and transport tuning for an http.Client.
type ClientConfig struct {
	Timeout                time.Duration
	MaxRetries             int
	DisableSSLVerification bool
	MaxIdleConns           int
	IdleConnTimeout        time.Duration
	TLSHandshakeTimeout    time.Duration
	ResponseHeaderTimeout  time.Duration
}

// DefaultClientConfig returns the baseline configuration used when a
// caller has no reason to deviate from it.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:                30 * time.Second,
		MaxRetries:             3,
		DisableSSLVerification: false,
		MaxIdleConns:           10,
		IdleConnTimeout:        90 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  15 * time.Second,
	}
}

// NewClient builds an *http.Client from the given configuration.
func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}
	if config.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// NewClientWithTimeout builds a client using DefaultClientConfig with the
// timeout overridden.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	config := DefaultClientConfig()
	config.Timeout = timeout
	return NewClient(config)
}

// NewDefaultClient builds a client using DefaultClientConfig unmodified.
func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}

// SlackClientConfig returns the configuration used for alert-sink requests
// to the Slack Web API: short timeout, no point waiting on a notification
// channel that should never be the slow part of a check. MaxRetries is set
// to 2, but NewClient does not read MaxRetries, so a client built from any
// ClientConfig makes a single attempt per request.
func SlackClientConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 10 * time.Second
	config.MaxRetries = 2
	return config
}

// PrometheusClientConfig returns the configuration used for scraping or
// pushing metrics, with a response-header timeout that is a fraction of
// the overall request timeout so a stalled metrics endpoint fails fast.
func PrometheusClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 2
	return config
}

// TargetClientConfig returns the configuration used by the endpoint prober
// to reach the monitored site, with a response-header timeout set to a
// third of the overall timeout so slow TTFB on one endpoint doesn't stall
// the rest of the sweep.
func TargetClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 3
	return config
}
