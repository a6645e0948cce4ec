package protocol

import (
	"strconv"

	"github.com/opsguard/opsguard/internal/types"
)

// Catalog ids of the seeded protocols
const (
	FireResponse       = "fire-response"
	MedicalEmergency   = "medical-emergency"
	SecurityLockdown   = "security-lockdown"
	FacilityEvacuation = "facility-evacuation"
)

// DefaultCatalog returns fresh copies of the built-in protocol templates
func DefaultCatalog() []types.EmergencyProtocol {
	return []types.EmergencyProtocol{
		template(FireResponse, "Fire Response", types.ProtocolFire,
			"Trigger the building fire alarm",
			"Notify the fire department",
			"Close fire doors on the affected floor",
			"Move residents away from the fire zone",
			"Confirm headcount at the assembly point",
		),
		template(MedicalEmergency, "Medical Emergency", types.ProtocolMedical,
			"Page the on-call nurse",
			"Bring the emergency cart to the location",
			"Call emergency medical services",
			"Notify the family contact",
		),
		template(SecurityLockdown, "Security Lockdown", types.ProtocolSecurity,
			"Lock all external doors",
			"Alert on-site security staff",
			"Review live camera feeds",
			"Contact local police",
			"Account for all residents and staff",
		),
		template(FacilityEvacuation, "Facility Evacuation", types.ProtocolEvacuation,
			"Announce evacuation over the public address system",
			"Open evacuation routes and disable elevators",
			"Assist residents with limited mobility",
			"Verify each wing is clear",
			"Confirm headcount at the assembly point",
			"Coordinate transport to the partner facility",
		),
	}
}

func template(id, name string, kind types.ProtocolKind, steps ...string) types.EmergencyProtocol {
	p := types.EmergencyProtocol{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Status: types.ProtocolInactive,
		Steps:  make([]types.ProtocolStep, len(steps)),
	}
	for i, description := range steps {
		p.Steps[i] = types.ProtocolStep{
			ID:          stepID(id, i+1),
			Order:       i + 1,
			Description: description,
		}
	}
	return p
}

func stepID(protocolID string, order int) string {
	return protocolID + "-step-" + strconv.Itoa(order)
}
