// Package perf implements the bounded performance-sample ring buffer
// shared by the probe session's performance-sampling step and the
// independent SLA monitor loop. Each owns its own buffer instance; there
// is no cross-loop sharing, only the same bounded-eviction shape.
package perf

import (
	"sync"
	"time"
)

// DefaultCapacity is the spec's bound: at most 200 samples per process,
// per buffer.
const DefaultCapacity = 200

// Sample is a single latency observation against a configured SLA
// threshold.
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	Endpoint      string    `json:"endpoint"`
	LatencyMs     int64     `json:"latencyMs"`
	WithinSLA     bool      `json:"withinSLA"`
	Status        int       `json:"status"`
	ContentLength int64     `json:"contentLength"`
}

// RingBuffer is a fixed-capacity FIFO of Samples; the oldest sample is
// evicted once capacity is exceeded.
type RingBuffer struct {
	mu       sync.Mutex
	samples  []Sample
	capacity int
}

// NewRingBuffer builds a RingBuffer bounded to capacity samples. A
// non-positive capacity falls back to DefaultCapacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{
		samples:  make([]Sample, 0, capacity),
		capacity: capacity,
	}
}

// Add appends s, evicting the oldest sample in insertion order if the
// buffer is at capacity.
func (r *RingBuffer) Add(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) >= r.capacity {
		r.samples = append(r.samples[1:], s)
		return
	}
	r.samples = append(r.samples, s)
}

// Snapshot returns an independent copy of every sample currently held.
func (r *RingBuffer) Snapshot() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Len returns the current number of held samples.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}
