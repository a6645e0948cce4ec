package types

import (
	"fmt"
	"time"
)

// ProtocolKind is the emergency category a protocol responds to
type ProtocolKind string

const (
	ProtocolFire       ProtocolKind = "fire"
	ProtocolMedical    ProtocolKind = "medical"
	ProtocolSecurity   ProtocolKind = "security"
	ProtocolEvacuation ProtocolKind = "evacuation"
)

// ProtocolStatus is the activation state of a protocol
type ProtocolStatus string

const (
	ProtocolInactive ProtocolStatus = "inactive"
	ProtocolActive   ProtocolStatus = "active"
	ProtocolTesting  ProtocolStatus = "testing"
)

// ProtocolStep is one discrete action within an emergency checklist
type ProtocolStep struct {
	ID          string     `json:"id"`
	Order       int        `json:"order"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
}

// EmergencyProtocol is a fixed emergency-response checklist
type EmergencyProtocol struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        ProtocolKind   `json:"kind"`
	Status      ProtocolStatus `json:"status"`
	ActivatedAt *time.Time     `json:"activated_at,omitempty"`
	ActivatedBy string         `json:"activated_by,omitempty"`
	Steps       []ProtocolStep `json:"steps"`
}

// ParseProtocolKind validates a protocol kind string
func ParseProtocolKind(s string) (ProtocolKind, error) {
	switch k := ProtocolKind(s); k {
	case ProtocolFire, ProtocolMedical, ProtocolSecurity, ProtocolEvacuation:
		return k, nil
	default:
		return "", fmt.Errorf("protocol kind %q: %w", s, ErrInvalidArgument)
	}
}

// CompletedSteps counts steps already marked completed
func (p *EmergencyProtocol) CompletedSteps() int {
	n := 0
	for _, step := range p.Steps {
		if step.Completed {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the protocol including its steps
func (p *EmergencyProtocol) Clone() *EmergencyProtocol {
	if p == nil {
		return nil
	}

	cloned := *p
	cloned.ActivatedAt = cloneTime(p.ActivatedAt)
	cloned.Steps = make([]ProtocolStep, len(p.Steps))
	for i, step := range p.Steps {
		step.CompletedAt = cloneTime(step.CompletedAt)
		cloned.Steps[i] = step
	}

	return &cloned
}
