package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/config"
	"github.com/foodguide/stallsync/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSyncFailure  AlertType = "sync_failure"
	AlertSyncWarnings AlertType = "sync_warnings"
	AlertSyncComplete AlertType = "sync_complete"
)

// Alert forwarding policies for alert.on.
const (
	OnFailure = "failure"
	OnAlways  = "always"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink delivers an alert to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Alerter turns run summaries into alerts and fans them out to sinks.
type Alerter struct {
	on    string
	sinks []Sink
}

// NewAlerter builds sinks from cfg. Unconfigured destinations are skipped.
func NewAlerter(cfg config.AlertConfig) *Alerter {
	var sinks []Sink
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID))
	}
	return NewAlerterWithSinks(cfg.On, sinks...)
}

// NewAlerterWithSinks creates an Alerter over explicit sinks.
func NewAlerterWithSinks(on string, sinks ...Sink) *Alerter {
	if on == "" {
		on = OnFailure
	}
	return &Alerter{on: on, sinks: sinks}
}

// Enabled reports whether any sink is configured.
func (a *Alerter) Enabled() bool {
	return len(a.sinks) > 0
}

// Evaluate returns the alert for a summary, or nil when the policy
// suppresses it.
func (a *Alerter) Evaluate(s *model.SyncRunSummary) *Alert {
	details := map[string]any{
		"run_id":         s.RunID,
		"status":         string(s.Status),
		"mode":           string(s.Mode),
		"trigger_source": s.TriggerSource,
		"inserted":       s.Inserted,
		"updated":        s.Updated,
		"deactivated":    s.Deactivated,
		"skipped":        s.Skipped,
	}
	if s.Forced {
		details["forced"] = true
	}
	alert := &Alert{Details: details, Timestamp: time.Now().UTC()}

	switch {
	case s.Failed():
		alert.Type = AlertSyncFailure
		alert.Severity = "high"
		alert.Message = fmt.Sprintf("stall sync %s failed: %s", s.RunID, strings.Join(s.Errors, "; "))
		details["errors"] = s.Errors
		return alert
	case a.on != OnAlways:
		return nil
	case len(s.Warnings) > 0:
		alert.Type = AlertSyncWarnings
		alert.Severity = "low"
		details["warnings"] = s.Warnings
	default:
		alert.Type = AlertSyncComplete
		alert.Severity = "info"
	}
	alert.Message = fmt.Sprintf("stall sync %s %s: +%d ~%d -%d, %d warning(s)",
		s.RunID, s.Status, s.Inserted, s.Updated, s.Deactivated, len(s.Warnings))
	return alert
}

// Notify evaluates the summary and delivers the result to every sink.
// Returns the number of sinks that accepted the alert. Delivery errors are
// logged and never propagated.
func (a *Alerter) Notify(ctx context.Context, s *model.SyncRunSummary) int {
	if !a.Enabled() {
		return 0
	}
	alert := a.Evaluate(s)
	if alert == nil {
		return 0
	}

	sent := 0
	for _, sink := range a.sinks {
		if err := sink.Send(ctx, *alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("sink", sink.Name()),
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("sink", sink.Name()),
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}
