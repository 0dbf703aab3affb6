package coordination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/knowledge"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/session"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/slamonitor"
)

// handleInbound dispatches a single inbound envelope. Unknown types are
// logged and dropped; the bus never fails a connection over an
// application-level message it doesn't recognise.
func (b *Bus) handleInbound(p *peer, env Envelope) {
	metrics.RecordCoordinationMessage(env.Type, "inbound")

	switch env.Type {
	case TypeFixApplied:
		b.logger.WithField("agentId", p.agentID).WithField("type", env.Type).Debug("peer message received")
		b.recordPeerFixApplied(env)

	case TypeStatusReport, TypeTaskUpdate, TypePerformanceMetric, TypeHookEvent, TypeErrorReport:
		b.logger.WithField("agentId", p.agentID).WithField("type", env.Type).Debug("peer message received")

	case TypePing:
		b.enqueue(p, Envelope{Type: TypePong, Timestamp: time.Now()})

	case TypePerformanceViolation:
		b.relayPerformanceViolation(p, env)

	default:
		b.logger.WithField("agentId", p.agentID).WithField("type", env.Type).Warn("unknown coordination message type, dropping")
	}
}

// recordPeerFixApplied updates the local knowledge store from a peer's
// fixApplied report, per spec §8 scenario 5: the pattern's success rate
// reflects fixes applied anywhere in the fleet, not just locally, and a
// new pieces-integration snapshot is published — no new probe session is
// triggered.
func (b *Bus) recordPeerFixApplied(env Envelope) {
	if b.knowledge == nil {
		return
	}

	var fa FixApplied
	if err := json.Unmarshal(env.Data, &fa); err != nil {
		b.logger.WithError(err).Warn("malformed peer fixApplied payload, dropping")
		return
	}
	if fa.Pattern == "" {
		return
	}

	pattern := b.knowledge.Record(fa.Pattern, fa.Action, fa.Success, knowledge.Metadata{Endpoint: fa.Endpoint})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.knowledge.PublishSnapshot(ctx, pattern, time.Now().Unix()); err != nil {
		b.logger.WithError(err).Warn("failed to publish knowledge snapshot from peer fixApplied")
	}
}

// relayPerformanceViolation treats a peer-reported performanceViolation as
// an ordinary force-check request, per spec §9's design note: the bus has
// no callback into session internals beyond this single entry point.
func (b *Bus) relayPerformanceViolation(p *peer, env Envelope) {
	if b.forceChecker == nil {
		b.logger.Warn("received performanceViolation but no force-check target is configured")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := b.forceChecker.ForceCheck(ctx); err != nil {
			b.logger.WithError(err).Warn("force-check triggered by peer performanceViolation failed")
		}
	}()
}

// BroadcastHealthUpdate implements session.Broadcaster.
func (b *Bus) BroadcastHealthUpdate(ctx context.Context, verdict *session.Verdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return err
	}
	b.broadcast(Envelope{
		Type:      TypeHealthUpdate,
		Timestamp: time.Now(),
		Data:      data,
		Priority:  priorityForOverall(string(verdict.Overall)),
	})
	return nil
}

// BroadcastFixApplied implements session.Broadcaster.
func (b *Bus) BroadcastFixApplied(ctx context.Context, record session.AutoFixRecord) error {
	data, err := json.Marshal(FixApplied{
		Endpoint:  record.Endpoint,
		Pattern:   record.PatternKey,
		Action:    record.Action,
		Success:   record.Success,
		Message:   record.Message,
		AppliedAt: record.AppliedAt,
	})
	if err != nil {
		return err
	}
	b.broadcast(Envelope{Type: TypeFixApplied, Timestamp: time.Now(), Data: data, Priority: PriorityMedium})
	return nil
}

// BroadcastCriticalAlert implements alerting.BusBroadcaster.
func (b *Bus) BroadcastCriticalAlert(ctx context.Context, kind, severity, message string, suggestedActions []string) error {
	data, err := json.Marshal(CriticalAlertPayload{
		Kind:             kind,
		Severity:         severity,
		Message:          message,
		SuggestedActions: suggestedActions,
	})
	if err != nil {
		return err
	}
	b.broadcast(Envelope{Type: TypeCriticalAlert, Timestamp: time.Now(), Data: data, Priority: PriorityCritical})
	return nil
}

// BroadcastPerformanceViolation implements slamonitor.Broadcaster.
func (b *Bus) BroadcastPerformanceViolation(ctx context.Context, alert slamonitor.Alert) error {
	data, err := json.Marshal(PerformanceViolationPayload{
		Kind:      alert.Kind,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Timestamp: alert.Timestamp,
	})
	if err != nil {
		return err
	}
	priority := PriorityHigh
	if alert.Severity == "critical" {
		priority = PriorityCritical
	} else if alert.Severity == "info" {
		priority = PriorityLow
	}
	b.broadcast(Envelope{Type: TypePerformanceViolation, Timestamp: time.Now(), Data: data, Priority: priority})
	return nil
}

func priorityForOverall(overall string) Priority {
	switch overall {
	case "critical":
		return PriorityCritical
	case "poor":
		return PriorityHigh
	case "fair":
		return PriorityMedium
	default:
		return PriorityLow
	}
}
