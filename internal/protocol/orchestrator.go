// Package protocol owns the emergency-protocol catalog and its activation and
// step-completion state. Protocols are seeded at construction and are never
// created or destroyed afterwards.
package protocol

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/metrics"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
)

// Orchestrator guards the protocol state
type Orchestrator struct {
	clock     clockwork.Clock
	log       zerolog.Logger
	metrics   *metrics.Metrics
	order     []string
	protocols map[string]*types.EmergencyProtocol
	mu        sync.RWMutex
}

// NewOrchestrator seeds the orchestrator with catalog. A nil catalog uses
// DefaultCatalog. Steps start uncompleted regardless of the template.
func NewOrchestrator(clk clockwork.Clock, catalog []types.EmergencyProtocol, m *metrics.Metrics, log zerolog.Logger) *Orchestrator {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	o := &Orchestrator{
		clock:     clk,
		log:       log.With().Str("component", "protocols").Logger(),
		metrics:   m,
		protocols: make(map[string]*types.EmergencyProtocol, len(catalog)),
	}
	for i := range catalog {
		p := catalog[i].Clone()
		p.Status = types.ProtocolInactive
		p.ActivatedAt = nil
		p.ActivatedBy = ""
		for j := range p.Steps {
			p.Steps[j].Completed = false
			p.Steps[j].CompletedAt = nil
			p.Steps[j].AssignedTo = ""
		}
		o.protocols[p.ID] = p
		o.order = append(o.order, p.ID)
	}
	return o
}

// Activate puts a protocol into the active state. It returns false, leaving
// the activation metadata untouched, when the protocol is already active.
// A running drill is promoted to a real activation.
func (o *Orchestrator) Activate(protocolID, activatedBy string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.protocols[protocolID]
	if !ok {
		return false, notFound(protocolID)
	}
	if p.Status == types.ProtocolActive {
		return false, nil
	}

	now := o.clock.Now()
	p.Status = types.ProtocolActive
	p.ActivatedAt = &now
	p.ActivatedBy = activatedBy

	o.metrics.RecordProtocolActivation(protocolID, string(types.ProtocolActive))
	o.metrics.SetActiveProtocols(o.activeCountLocked())
	o.log.Warn().
		Str("protocol_id", protocolID).
		Str("activated_by", activatedBy).
		Msg("Emergency protocol activated")

	return true, nil
}

// ActivateProtocol satisfies Activator
func (o *Orchestrator) ActivateProtocol(protocolID, activatedBy string) (bool, error) {
	return o.Activate(protocolID, activatedBy)
}

// StartDrill puts an inactive protocol into the testing state. It returns
// false when the protocol is already active or testing.
func (o *Orchestrator) StartDrill(protocolID, startedBy string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.protocols[protocolID]
	if !ok {
		return false, notFound(protocolID)
	}
	if p.Status != types.ProtocolInactive {
		return false, nil
	}

	now := o.clock.Now()
	p.Status = types.ProtocolTesting
	p.ActivatedAt = &now
	p.ActivatedBy = startedBy

	o.metrics.RecordProtocolActivation(protocolID, string(types.ProtocolTesting))
	o.log.Info().
		Str("protocol_id", protocolID).
		Str("started_by", startedBy).
		Msg("Protocol drill started")

	return true, nil
}

// Deactivate returns a protocol to inactive and clears its activation
// metadata. Completed steps stay completed across activation cycles.
// It returns false when the protocol is already inactive.
func (o *Orchestrator) Deactivate(protocolID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.protocols[protocolID]
	if !ok {
		return false, notFound(protocolID)
	}
	if p.Status == types.ProtocolInactive {
		return false, nil
	}

	previous := p.Status
	p.Status = types.ProtocolInactive
	p.ActivatedAt = nil
	p.ActivatedBy = ""

	o.metrics.SetActiveProtocols(o.activeCountLocked())
	o.log.Info().
		Str("protocol_id", protocolID).
		Str("previous_status", string(previous)).
		Int("completed_steps", p.CompletedSteps()).
		Msg("Protocol deactivated")

	return true, nil
}

// CompleteStep marks one step completed. Steps may be completed in any order.
// It returns false when the step is already completed; the first completion
// time and assignee are kept.
func (o *Orchestrator) CompleteStep(protocolID, stepID, completedBy string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.protocols[protocolID]
	if !ok {
		return false, notFound(protocolID)
	}
	if p.Status == types.ProtocolInactive {
		return false, fmt.Errorf("protocol %s is inactive: %w", protocolID, types.ErrInvalidTransition)
	}

	for i := range p.Steps {
		step := &p.Steps[i]
		if step.ID != stepID {
			continue
		}
		if step.Completed {
			return false, nil
		}

		now := o.clock.Now()
		step.Completed = true
		step.CompletedAt = &now
		step.AssignedTo = completedBy

		o.log.Info().
			Str("protocol_id", protocolID).
			Str("step_id", stepID).
			Int("order", step.Order).
			Str("completed_by", completedBy).
			Msg("Protocol step completed")
		return true, nil
	}

	return false, fmt.Errorf("protocol %s step %s: %w", protocolID, stepID, types.ErrNotFound)
}

// Get returns a copy of one protocol
func (o *Orchestrator) Get(protocolID string) (*types.EmergencyProtocol, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.protocols[protocolID]
	if !ok {
		return nil, notFound(protocolID)
	}
	return p.Clone(), nil
}

// Progress returns completed and total step counts for a protocol
func (o *Orchestrator) Progress(protocolID string) (completed, total int, err error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.protocols[protocolID]
	if !ok {
		return 0, 0, notFound(protocolID)
	}
	return p.CompletedSteps(), len(p.Steps), nil
}

// ListAll returns every protocol in catalog order
func (o *Orchestrator) ListAll() []*types.EmergencyProtocol {
	return o.list(func(*types.EmergencyProtocol) bool { return true })
}

// ListActive returns protocols in the active state; drills are excluded
func (o *Orchestrator) ListActive() []*types.EmergencyProtocol {
	return o.list(func(p *types.EmergencyProtocol) bool { return p.Status == types.ProtocolActive })
}

// ListTesting returns protocols currently running as drills
func (o *Orchestrator) ListTesting() []*types.EmergencyProtocol {
	return o.list(func(p *types.EmergencyProtocol) bool { return p.Status == types.ProtocolTesting })
}

func (o *Orchestrator) list(keep func(*types.EmergencyProtocol) bool) []*types.EmergencyProtocol {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]*types.EmergencyProtocol, 0, len(o.order))
	for _, id := range o.order {
		if p := o.protocols[id]; keep(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (o *Orchestrator) activeCountLocked() int {
	n := 0
	for _, p := range o.protocols {
		if p.Status == types.ProtocolActive {
			n++
		}
	}
	return n
}

func notFound(protocolID string) error {
	return fmt.Errorf("protocol %s: %w", protocolID, types.ErrNotFound)
}
