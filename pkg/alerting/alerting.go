// Package alerting implements the alert dispatcher (spec component C10):
// a dedup-by-kind active-alerts set, a severity ladder, and best-effort
// fanout to the external Slack sink plus a criticalAlert broadcast on the
// coordination bus. A failed dispatch never affects the probe session's
// own result.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/scoring"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/session"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/shared/logging"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/slamonitor"
)

// Severity ladder, highest first, per spec §4.10.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// BusBroadcaster is the coordination bus's outbound half, as seen by the
// dispatcher: a best-effort criticalAlert broadcast.
type BusBroadcaster interface {
	BroadcastCriticalAlert(ctx context.Context, kind, severity, message string, suggestedActions []string) error
}

// Dispatcher is the single-writer active-alerts set plus the Slack and
// bus fanout.
type Dispatcher struct {
	slackClient *slack.Client
	slackChannel string
	bus         BusBroadcaster
	logger      *logrus.Entry

	mu           sync.Mutex
	activeAlerts map[string]bool
}

// New builds a Dispatcher. slackClient may be nil to disable the Slack
// sink (e.g. in tests); bus may be nil to disable bus fanout.
func New(slackClient *slack.Client, slackChannel string, bus BusBroadcaster, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		slackClient:  slackClient,
		slackChannel: slackChannel,
		bus:          bus,
		logger:       logger.WithField("component", "alert_dispatcher"),
		activeAlerts: make(map[string]bool),
	}
}

// SetBus wires the coordination bus in after construction, breaking the
// construction cycle between the bus (which needs a force-check target)
// and the dispatcher (which needs the bus for broadcast fanout).
func (d *Dispatcher) SetBus(bus BusBroadcaster) {
	d.mu.Lock()
	d.bus = bus
	d.mu.Unlock()
}

// Dispatch implements session.AlertDispatcher: every critical issue whose
// kind is not already in the active-alerts set is fanned out and the key
// enters the set; a verdict reaching good/excellent clears the set
// entirely (per spec §4.10).
func (d *Dispatcher) Dispatch(ctx context.Context, verdict *session.Verdict) error {
	d.mu.Lock()
	var toFire []session.CriticalIssue
	for _, issue := range verdict.CriticalIssues {
		if d.activeAlerts[issue.Kind] {
			metrics.RecordAlertDeduped()
			continue
		}
		d.activeAlerts[issue.Kind] = true
		toFire = append(toFire, issue)
	}
	if verdict.Overall == scoring.OverallGood || verdict.Overall == scoring.OverallExcellent {
		d.activeAlerts = make(map[string]bool)
	}
	d.mu.Unlock()

	for _, issue := range toFire {
		d.fanout(ctx, issue.Kind, issue.Severity, issue.Message, issue.SuggestedActions)
	}
	return nil
}

// DispatchSLAAlert fans out an SLA monitor alert to the Slack sink. The
// coordination bus broadcast for SLA transitions is made directly by the
// SLA monitor itself (it owns that leg of the fanout), so this method
// does not touch the bus.
func (d *Dispatcher) DispatchSLAAlert(ctx context.Context, alert slamonitor.Alert) error {
	d.fanoutSlackOnly(ctx, alert.Kind, alert.Severity, alert.Message)
	return nil
}

func (d *Dispatcher) fanout(ctx context.Context, kind, severity, message string, suggestedActions []string) {
	metrics.RecordAlert(severity)
	d.logger.WithFields(logging.NewFields().Component("alerting").Operation("dispatch").
		Custom("kind", kind).Custom("severity", severity).ToLogrus()).Warn(message)

	d.sendSlack(kind, severity, message, suggestedActions)

	if d.bus != nil {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.bus.BroadcastCriticalAlert(bgCtx, kind, severity, message, suggestedActions); err != nil {
				d.logger.WithError(err).Warn("failed to broadcast critical alert on coordination bus")
			}
		}()
	}
}

func (d *Dispatcher) fanoutSlackOnly(ctx context.Context, kind, severity, message string) {
	metrics.RecordAlert(severity)
	d.sendSlack(kind, severity, message, nil)
}

// sendSlack is a best-effort, fire-and-forget hand-off to the external
// notification sink: failure to post never blocks or fails the caller.
func (d *Dispatcher) sendSlack(kind, severity, message string, suggestedActions []string) {
	if d.slackClient == nil {
		return
	}

	go func() {
		text := formatAlertText(kind, severity, message, suggestedActions)
		if _, _, err := d.slackClient.PostMessage(d.slackChannel, slack.MsgOptionText(text, false)); err != nil {
			d.logger.WithError(err).Warn("failed to post alert to slack")
		}
	}()
}

func formatAlertText(kind, severity, message string, suggestedActions []string) string {
	text := fmt.Sprintf("[%s] %s: %s", severity, kind, message)
	for _, action := range suggestedActions {
		text += fmt.Sprintf("\n- %s", action)
	}
	return text
}
