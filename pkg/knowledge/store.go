// Package knowledge implements the bounded key-to-pattern map that backs
// the auto-fix engine's fix selection: a single-writer in-memory store with
// an incremental-mean success rate, a filesystem sink as the durable
// projection, and an optional Redis read-through snapshot cache.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	rediscache "github.com/Think-Big-Media/warroom-healthguard/pkg/cache/redis"
	sharederrors "github.com/Think-Big-Media/warroom-healthguard/pkg/shared/errors"
)

// Severity is the fixed severity vocabulary carried in a pattern's metadata.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Metadata carries the classification detail behind a pattern key.
type Metadata struct {
	Severity  Severity `json:"severity"`
	Endpoint  string   `json:"endpoint,omitempty"`
	ErrorType string   `json:"errorType,omitempty"`
	LatencyMs int64    `json:"latencyMs,omitempty"`
}

// Pattern is a learned fix pattern keyed by a stable failure classification.
type Pattern struct {
	Key           string    `json:"key"`
	Action        string    `json:"action"`
	AppliedCount  int       `json:"appliedCount"`
	SuccessRate   float64   `json:"successRate"`
	LastAppliedAt time.Time `json:"lastAppliedAt"`
	Tags          []string  `json:"tags"`
	Metadata      Metadata  `json:"metadata"`
}

// Store is the mutex-guarded pattern map. Record is called by the auto-fix
// engine and by the coordination bus for peer fixApplied events; Get reads
// a single pattern and Snapshot returns a copy of the whole map.
type Store struct {
	mu          sync.Mutex
	patterns    map[string]*Pattern
	sinkDir     string
	piecesOn    bool
	cache       *rediscache.Cache[Pattern]
}

// NewStore builds an empty Store rooted at sinkDir (the knowledge-base
// directory). cache may be nil when no Redis snapshot cache is configured.
func NewStore(sinkDir string, piecesIntegrationEnabled bool, cache *rediscache.Cache[Pattern]) *Store {
	return &Store{
		patterns: make(map[string]*Pattern),
		sinkDir:  sinkDir,
		piecesOn: piecesIntegrationEnabled,
		cache:    cache,
	}
}

// Get returns a copy of the pattern for key, if one exists.
func (s *Store) Get(key string) (Pattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[key]
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

// Snapshot returns a consistent, independent copy of every pattern,
// suitable for a session-start read that must not observe concurrent
// writes from the auto-fix engine.
func (s *Store) Snapshot() map[string]Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Pattern, len(s.patterns))
	for k, v := range s.patterns {
		out[k] = *v
	}
	return out
}

// Record applies the observed success bit to the pattern for key, creating
// it with action if absent. The success rate follows the incremental mean:
// rate' = (rate*n + (1 if success else 0)) / (n+1).
func (s *Store) Record(key, action string, success bool, metadata Metadata) Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[key]
	if !ok {
		p = &Pattern{Key: key, Action: action, Metadata: metadata}
		s.patterns[key] = p
	}

	successValue := 0.0
	if success {
		successValue = 1.0
	}
	p.SuccessRate = (p.SuccessRate*float64(p.AppliedCount) + successValue) / float64(p.AppliedCount+1)
	p.AppliedCount++
	p.Action = action
	p.LastAppliedAt = time.Now()
	if metadata.Severity != "" {
		p.Metadata = metadata
	}

	return *p
}

// SaveToDisk writes the full pattern set to
// <sinkDir>/health-check-fixes/known-fixes.json, the single source of
// truth for the store's durable projection.
func (s *Store) SaveToDisk() error {
	s.mu.Lock()
	patterns := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		patterns = append(patterns, *p)
	}
	s.mu.Unlock()

	dir := filepath.Join(s.sinkDir, "health-check-fixes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sharederrors.FailedToWithDetails("create knowledge sink directory", "knowledge", dir, err)
	}

	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal known-fixes.json", err)
	}

	path := filepath.Join(dir, "known-fixes.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write known-fixes.json", "knowledge", path, err)
	}
	return nil
}

// LoadFromDisk reads the durable pattern set back into memory. A missing
// file is not an error (a fresh store simply starts empty).
func (s *Store) LoadFromDisk() error {
	path := filepath.Join(s.sinkDir, "health-check-fixes", "known-fixes.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return sharederrors.FailedToWithDetails("read known-fixes.json", "knowledge", path, err)
	}

	var patterns []Pattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return sharederrors.ParseError("known-fixes.json", "JSON", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = make(map[string]*Pattern, len(patterns))
	for i := range patterns {
		p := patterns[i]
		s.patterns[p.Key] = &p
	}
	return nil
}

// PublishSnapshot writes a single learned-pattern snapshot to the external
// Pieces-integration sink, a no-op when that integration is disabled.
func (s *Store) PublishSnapshot(ctx context.Context, pattern Pattern, nowEpoch int64) error {
	if !s.piecesOn {
		return nil
	}

	dir := filepath.Join(s.sinkDir, "pieces-integration")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sharederrors.FailedToWithDetails("create pieces-integration directory", "knowledge", dir, err)
	}

	entry := struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Tags        []string  `json:"tags"`
		Metadata    Metadata  `json:"metadata"`
		Content     Pattern   `json:"content"`
		Timestamp   time.Time `json:"timestamp"`
	}{
		ID:          fmt.Sprintf("fix-%d", nowEpoch),
		Title:       fmt.Sprintf("Fix pattern: %s", pattern.Key),
		Description: fmt.Sprintf("Learned fix %q for pattern %q (success rate %.2f)", pattern.Action, pattern.Key, pattern.SuccessRate),
		Tags:        pattern.Tags,
		Metadata:    pattern.Metadata,
		Content:     pattern,
		Timestamp:   time.Now(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal pieces-integration snapshot", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("fix-%d.json", nowEpoch))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sinkWriteError: %w", sharederrors.FailedToWithDetails("write pieces-integration snapshot", "knowledge", path, err))
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, pattern.Key, &pattern)
	}
	return nil
}

// WarmFromCache attempts a Redis-backed read-through for key before
// falling back to the in-process map, used for a session-start snapshot
// when a Redis cache is configured.
func (s *Store) WarmFromCache(ctx context.Context, key string) (Pattern, bool) {
	if s.cache == nil {
		return s.Get(key)
	}
	cached, err := s.cache.Get(ctx, key)
	if err == nil && cached != nil {
		return *cached, true
	}
	return s.Get(key)
}
