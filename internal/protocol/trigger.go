package protocol

import (
	"context"
	"fmt"

	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
)

// TriggerRule activates a protocol when a matching alert escalates
type TriggerRule struct {
	// Kind restricts the rule to one alert kind; empty matches any kind.
	Kind types.AlertKind
	// MinSeverity is the lowest severity that fires the rule; empty matches any.
	MinSeverity types.Severity
	// MinLevel is the escalation level the alert must have reached.
	MinLevel int
	// ProtocolID is the protocol to activate.
	ProtocolID string
}

// Matches reports whether evt satisfies the rule
func (r TriggerRule) Matches(evt alerter.Escalation) bool {
	if r.Kind != "" && evt.Alert.Kind != r.Kind {
		return false
	}
	if r.MinSeverity != "" && evt.Alert.Severity.Rank() < r.MinSeverity.Rank() {
		return false
	}
	return evt.Level >= r.MinLevel
}

// Activator activates a protocol by id
type Activator interface {
	ActivateProtocol(protocolID, activatedBy string) (bool, error)
}

// ActivatorFunc adapts a function to Activator
type ActivatorFunc func(protocolID, activatedBy string) (bool, error)

// ActivateProtocol calls f
func (f ActivatorFunc) ActivateProtocol(protocolID, activatedBy string) (bool, error) {
	return f(protocolID, activatedBy)
}

// TriggerSubscriber is an escalation subscriber that activates protocols
// according to its rules
type TriggerSubscriber struct {
	activator Activator
	rules     []TriggerRule
	log       zerolog.Logger
}

// NewTriggerSubscriber creates a subscriber using activator for activation
func NewTriggerSubscriber(activator Activator, rules []TriggerRule, log zerolog.Logger) *TriggerSubscriber {
	return &TriggerSubscriber{
		activator: activator,
		rules:     rules,
		log:       log.With().Str("component", "protocol-trigger").Logger(),
	}
}

// Name identifies the subscriber in logs and metrics
func (t *TriggerSubscriber) Name() string {
	return "protocol-trigger"
}

// HandleEscalation activates every protocol whose rule matches evt
func (t *TriggerSubscriber) HandleEscalation(ctx context.Context, evt alerter.Escalation) error {
	activatedBy := "escalation:" + evt.Alert.ID
	for _, rule := range t.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rule.Matches(evt) {
			continue
		}

		activated, err := t.activator.ActivateProtocol(rule.ProtocolID, activatedBy)
		if err != nil {
			return fmt.Errorf("activate protocol %s: %w", rule.ProtocolID, err)
		}
		if activated {
			t.log.Warn().
				Str("protocol_id", rule.ProtocolID).
				Str("alert_id", evt.Alert.ID).
				Int("level", evt.Level).
				Msg("Protocol activated by escalation")
		}
	}
	return nil
}
