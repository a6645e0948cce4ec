package alerter

import (
	"time"

	"github.com/opsguard/opsguard/internal/types"
)

// Filter selects alerts for List. Empty fields match everything.
type Filter struct {
	Statuses   []types.AlertStatus
	Severities []types.Severity
	Kinds      []types.AlertKind
	Source     string
	Limit      int
}

// Match reports whether the alert satisfies every populated field
func (f Filter) Match(alert *types.Alert) bool {
	if alert == nil {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, alert.Status) {
		return false
	}
	if len(f.Severities) > 0 && !contains(f.Severities, alert.Severity) {
		return false
	}
	if len(f.Kinds) > 0 && !contains(f.Kinds, alert.Kind) {
		return false
	}
	if f.Source != "" && f.Source != alert.Source {
		return false
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// Stats summarises the alert collection
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
	Escalated    int `json:"escalated"`

	ByStatus   map[types.AlertStatus]int `json:"by_status"`
	BySeverity map[types.Severity]int    `json:"by_severity"`
	ByKind     map[types.AlertKind]int   `json:"by_kind"`
	// Unresolved counts active and acknowledged alerts by severity.
	Unresolved map[types.Severity]int `json:"unresolved"`
	// UnresolvedEscalated counts unresolved alerts that have escalated.
	UnresolvedEscalated int `json:"unresolved_escalated"`

	ResolvedFraction float64 `json:"resolved_fraction"`

	AvgAcknowledgeLatency time.Duration `json:"-"`
	AvgResolutionLatency  time.Duration `json:"-"`
	AvgAcknowledgeSeconds float64       `json:"avg_acknowledge_seconds"`
	AvgResolutionSeconds  float64       `json:"avg_resolution_seconds"`
}
