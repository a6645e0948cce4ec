// Package health combines alert statistics, protocol state and module
// liveness into one read-only snapshot for presentation callers.
package health

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/types"
)

// Overall status labels
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// AlertSource is the part of the alert store the view reads. The score is
// derived from one Stats call so counts and score agree.
type AlertSource interface {
	Stats() alerter.Stats
}

// ProtocolSource is the part of the orchestrator the view reads
type ProtocolSource interface {
	ListActive() []*types.EmergencyProtocol
	ListTesting() []*types.EmergencyProtocol
}

// ModuleSource is the part of the heartbeat monitor the view reads
type ModuleSource interface {
	Statuses() []types.ModuleView
	ConnectedCount() int
}

// Snapshot is an immutable point-in-time health summary
type Snapshot struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	Score           float64            `json:"score"`
	Status          string             `json:"status"`
	Alerts          alerter.Stats      `json:"alerts"`
	ActiveProtocols []string           `json:"active_protocols"`
	Drills          []string           `json:"drills"`
	Modules         []types.ModuleView `json:"modules"`
	ModuleCount     int                `json:"module_count"`
	ConnectedCount  int                `json:"connected_count"`
	DegradedModules []string           `json:"degraded_modules"`
	PoorModules     []string           `json:"poor_modules"`
	FlappingModules []string           `json:"flapping_modules"`
}

// View recomputes a Snapshot on every call; nothing is cached
type View struct {
	alerts    AlertSource
	protocols ProtocolSource
	modules   ModuleSource
	clock     clockwork.Clock
}

// NewView creates a view over the three stores
func NewView(alerts AlertSource, protocols ProtocolSource, modules ModuleSource, clk clockwork.Clock) *View {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &View{
		alerts:    alerts,
		protocols: protocols,
		modules:   modules,
		clock:     clk,
	}
}

// Snapshot builds the current health summary
func (v *View) Snapshot() Snapshot {
	snap := Snapshot{
		GeneratedAt:     v.clock.Now(),
		Alerts:          v.alerts.Stats(),
		ActiveProtocols: []string{},
		Drills:          []string{},
		DegradedModules: []string{},
		PoorModules:     []string{},
		FlappingModules: []string{},
	}

	for _, p := range v.protocols.ListActive() {
		snap.ActiveProtocols = append(snap.ActiveProtocols, p.Name)
	}
	for _, p := range v.protocols.ListTesting() {
		snap.Drills = append(snap.Drills, p.Name)
	}

	snap.Modules = v.modules.Statuses()
	snap.ModuleCount = len(snap.Modules)
	snap.ConnectedCount = v.modules.ConnectedCount()
	for _, m := range snap.Modules {
		switch m.Classification {
		case types.QualityDegraded:
			snap.DegradedModules = append(snap.DegradedModules, m.ModuleID)
		case types.QualityPoor:
			snap.PoorModules = append(snap.PoorModules, m.ModuleID)
		}
		if m.Flapping {
			snap.FlappingModules = append(snap.FlappingModules, m.ModuleID)
		}
	}

	snap.Score = score(snap.Alerts, len(snap.ActiveProtocols), snap.ModuleCount, len(snap.DegradedModules), len(snap.PoorModules))
	snap.Status = label(snap.Score)

	return snap
}

var alertPenalties = map[types.Severity]float64{
	types.SeverityCritical: 10,
	types.SeverityHigh:     5,
	types.SeverityMedium:   2,
	types.SeverityLow:      1,
}

const (
	escalatedPenalty = 2
	protocolPenalty  = 15
	modulePenalty    = 30
)

func score(alerts alerter.Stats, activeProtocols, modules, degraded, poor int) float64 {
	s := 100.0
	for severity, n := range alerts.Unresolved {
		s -= alertPenalties[severity] * float64(n)
	}
	s -= float64(alerts.UnresolvedEscalated * escalatedPenalty)
	s -= float64(activeProtocols * protocolPenalty)
	if modules > 0 {
		s -= modulePenalty * (float64(poor) + 0.5*float64(degraded)) / float64(modules)
	}
	if s < 0 {
		return 0
	}
	return s
}

func label(score float64) string {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	default:
		return StatusCritical
	}
}
