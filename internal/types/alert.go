package types

import (
	"fmt"
	"time"
)

// AlertKind classifies the subsystem an alert originates from
type AlertKind string

const (
	KindSystem      AlertKind = "system"
	KindSecurity    AlertKind = "security"
	KindPerformance AlertKind = "performance"
	KindMaintenance AlertKind = "maintenance"
	KindHealth      AlertKind = "health"
	KindApplication AlertKind = "application"
)

// Severity is the reported urgency of an alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus is the lifecycle state of an alert.
// Transitions only move forward: active -> acknowledged -> resolved.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// MetadataResolutionNote is the metadata key holding the note passed to resolve
const MetadataResolutionNote = "resolution_note"

var (
	alertKinds = map[AlertKind]struct{}{
		KindSystem: {}, KindSecurity: {}, KindPerformance: {},
		KindMaintenance: {}, KindHealth: {}, KindApplication: {},
	}
	severities = map[Severity]int{
		SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3, SeverityCritical: 4,
	}
	alertStatuses = map[AlertStatus]int{
		StatusActive: 0, StatusAcknowledged: 1, StatusResolved: 2,
	}
)

// ParseAlertKind validates a kind string
func ParseAlertKind(s string) (AlertKind, error) {
	k := AlertKind(s)
	if _, ok := alertKinds[k]; !ok {
		return "", fmt.Errorf("alert kind %q: %w", s, ErrInvalidArgument)
	}
	return k, nil
}

// ParseSeverity validates a severity string
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severities[sev]; !ok {
		return "", fmt.Errorf("severity %q: %w", s, ErrInvalidArgument)
	}
	return sev, nil
}

// ParseAlertStatus validates a status string
func ParseAlertStatus(s string) (AlertStatus, error) {
	st := AlertStatus(s)
	if _, ok := alertStatuses[st]; !ok {
		return "", fmt.Errorf("alert status %q: %w", s, ErrInvalidArgument)
	}
	return st, nil
}

// Rank orders severities from 1 (low) to 4 (critical); unknown values rank 0.
func (s Severity) Rank() int {
	return severities[s]
}

// Rank orders statuses along the lifecycle so that a transition is valid
// only when it increases the rank.
func (s AlertStatus) Rank() int {
	return alertStatuses[s]
}

// Alert is a reported condition requiring operator attention
type Alert struct {
	ID              string         `json:"id"`
	Kind            AlertKind      `json:"kind"`
	Severity        Severity       `json:"severity"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	Source          string         `json:"source"`
	CreatedAt       time.Time      `json:"created_at"`
	Status          AlertStatus    `json:"status"`
	EscalationLevel int            `json:"escalation_level"`
	Escalated       bool           `json:"escalated"`
	LastEscalatedAt *time.Time     `json:"last_escalated_at,omitempty"`
	AcknowledgedBy  string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	ResolvedBy      string         `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.LastEscalatedAt = cloneTime(a.LastEscalatedAt)
	cloned.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	cloned.ResolvedAt = cloneTime(a.ResolvedAt)

	if a.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			cloned.Metadata[k] = v
		}
	}

	return &cloned
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
