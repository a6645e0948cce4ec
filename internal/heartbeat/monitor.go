// Package heartbeat tracks module liveness. Classification is derived from
// the elapsed time since the last heartbeat at query time; nothing here runs
// a timer per module.
package heartbeat

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
)

// Cutoffs are the elapsed-time boundaries of the liveness classification
type Cutoffs struct {
	DegradedAfter time.Duration
	PoorAfter     time.Duration
}

// DefaultCutoffs are 30s degraded and 60s poor
var DefaultCutoffs = Cutoffs{
	DegradedAfter: 30 * time.Second,
	PoorAfter:     60 * time.Second,
}

// Classify is the pure liveness rule: poor when disconnected or silent past
// PoorAfter, degraded when silent past DegradedAfter, otherwise the stored
// quality reported by the module.
func (c Cutoffs) Classify(connected bool, elapsed time.Duration, stored types.DataQuality) types.DataQuality {
	switch {
	case !connected, elapsed >= c.PoorAfter:
		return types.QualityPoor
	case elapsed >= c.DegradedAfter:
		return types.QualityDegraded
	case stored == "":
		return types.QualityGood
	default:
		return stored
	}
}

// Monitor owns the module status records
type Monitor struct {
	clock   clockwork.Clock
	cutoffs Cutoffs
	flaps   *FlapDetector
	log     zerolog.Logger
	modules map[string]*types.ModuleIntegrationStatus
	mu      sync.RWMutex
}

// NewMonitor creates a monitor; flaps may be nil to disable flap tracking
func NewMonitor(clk clockwork.Clock, cutoffs Cutoffs, flaps *FlapDetector, log zerolog.Logger) *Monitor {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if cutoffs.DegradedAfter <= 0 || cutoffs.PoorAfter <= 0 {
		cutoffs = DefaultCutoffs
	}
	return &Monitor{
		clock:   clk,
		cutoffs: cutoffs,
		flaps:   flaps,
		log:     log.With().Str("component", "heartbeat").Logger(),
		modules: make(map[string]*types.ModuleIntegrationStatus),
	}
}

// Register inserts or overwrites a module record as connected and good
func (m *Monitor) Register(moduleID, version string) (*types.ModuleIntegrationStatus, error) {
	if moduleID == "" {
		return nil, fmt.Errorf("module id is required: %w", types.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	previous, existed := m.modules[moduleID]
	status := &types.ModuleIntegrationStatus{
		ModuleID:      moduleID,
		Connected:     true,
		LastHeartbeat: now,
		Version:       version,
		DataQuality:   types.QualityGood,
		RegisteredAt:  now,
	}
	m.modules[moduleID] = status

	if existed && !previous.Connected {
		m.recordFlap(moduleID)
	}

	m.log.Info().
		Str("module_id", moduleID).
		Str("version", version).
		Bool("re_registered", existed).
		Msg("Module registered")

	copied := *status
	return &copied, nil
}

// Heartbeat refreshes lastHeartbeat and marks the module connected.
// Heartbeats from a module that never registered are ignored and reported
// as ErrNotFound; they do not create a record.
func (m *Monitor) Heartbeat(moduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.modules[moduleID]
	if !ok {
		return fmt.Errorf("module %s: %w", moduleID, types.ErrNotFound)
	}

	status.LastHeartbeat = m.clock.Now()
	if !status.Connected {
		status.Connected = true
		m.recordFlap(moduleID)
		m.log.Info().Str("module_id", moduleID).Msg("Module reconnected")
	}
	return nil
}

// Disconnect marks a module as no longer connected
func (m *Monitor) Disconnect(moduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.modules[moduleID]
	if !ok {
		return fmt.Errorf("module %s: %w", moduleID, types.ErrNotFound)
	}
	if !status.Connected {
		return nil
	}

	status.Connected = false
	m.recordFlap(moduleID)
	m.log.Warn().Str("module_id", moduleID).Msg("Module disconnected")
	return nil
}

// ReportQuality stores the quality self-reported by a module supervisor
func (m *Monitor) ReportQuality(moduleID string, quality types.DataQuality) error {
	if _, err := types.ParseDataQuality(string(quality)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.modules[moduleID]
	if !ok {
		return fmt.Errorf("module %s: %w", moduleID, types.ErrNotFound)
	}
	status.DataQuality = quality
	return nil
}

// Classify returns the liveness classification of one module
func (m *Monitor) Classify(moduleID string) (types.DataQuality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.modules[moduleID]
	if !ok {
		return "", fmt.Errorf("module %s: %w", moduleID, types.ErrNotFound)
	}
	return m.classifyLocked(status, m.clock.Now()), nil
}

// ConnectedCount counts records with connected set
func (m *Monitor) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, status := range m.modules {
		if status.Connected {
			n++
		}
	}
	return n
}

// Statuses returns every module with its classification, sorted by id
func (m *Monitor) Statuses() []types.ModuleView {
	m.mu.RLock()
	now := m.clock.Now()
	out := make([]types.ModuleView, 0, len(m.modules))
	for _, status := range m.modules {
		out = append(out, types.ModuleView{
			ModuleIntegrationStatus: *status,
			Classification:          m.classifyLocked(status, now),
		})
	}
	m.mu.RUnlock()

	if m.flaps != nil {
		for i := range out {
			out[i].Flapping = m.flaps.IsFlapping(out[i].ModuleID)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out
}

// Sweep expires stale flap history; it is run by the liveness sync job
func (m *Monitor) Sweep() {
	if m.flaps != nil {
		m.flaps.Cleanup()
	}
}

func (m *Monitor) classifyLocked(status *types.ModuleIntegrationStatus, now time.Time) types.DataQuality {
	return m.cutoffs.Classify(status.Connected, now.Sub(status.LastHeartbeat), status.DataQuality)
}

func (m *Monitor) recordFlap(moduleID string) {
	if m.flaps == nil {
		return
	}
	m.flaps.RecordChange(moduleID)
}
