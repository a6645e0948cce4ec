package alerter

import (
	"sort"

	"github.com/opsguard/opsguard/internal/types"
)

var severityWeights = map[types.Severity]float64{
	types.SeverityCritical: 4,
	types.SeverityHigh:     3,
	types.SeverityMedium:   2,
	types.SeverityLow:      1,
}

// Kinds not listed score with a multiplier of 1.0
var kindMultipliers = map[types.AlertKind]float64{
	types.KindSecurity:    1.5,
	types.KindSystem:      1.2,
	types.KindPerformance: 1.0,
	types.KindMaintenance: 0.8,
}

// Score returns the deterministic priority of an alert. It is used only for
// ordering and is never stored on the alert.
func Score(alert *types.Alert) float64 {
	if alert == nil {
		return 0
	}
	return severityWeight(alert.Severity)*kindMultiplier(alert.Kind) + statusBonus(alert.Status, alert.Escalated)
}

func severityWeight(s types.Severity) float64 {
	return severityWeights[s]
}

func kindMultiplier(k types.AlertKind) float64 {
	if m, ok := kindMultipliers[k]; ok {
		return m
	}
	return 1.0
}

// statusBonus rewards alerts still waiting for an operator. Acknowledged and
// resolved alerts contribute nothing.
func statusBonus(status types.AlertStatus, escalated bool) float64 {
	if status != types.StatusActive {
		return 0
	}
	if escalated {
		return 3
	}
	return 2
}

// SortByPriority orders alerts by score descending, newest first on ties.
// The id is the final tie-breaker so the order is stable across calls.
func SortByPriority(alerts []*types.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		si, sj := Score(alerts[i]), Score(alerts[j])
		if si != sj {
			return si > sj
		}
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})
}
