package types

import (
	"fmt"
	"time"
)

// DataQuality is the liveness classification of an integrated module
type DataQuality string

const (
	QualityGood     DataQuality = "good"
	QualityDegraded DataQuality = "degraded"
	QualityPoor     DataQuality = "poor"
)

// ParseDataQuality validates a data quality string
func ParseDataQuality(s string) (DataQuality, error) {
	switch q := DataQuality(s); q {
	case QualityGood, QualityDegraded, QualityPoor:
		return q, nil
	default:
		return "", fmt.Errorf("data quality %q: %w", s, ErrInvalidArgument)
	}
}

// ModuleIntegrationStatus is the last known contact state of a module
type ModuleIntegrationStatus struct {
	ModuleID      string      `json:"module_id"`
	Connected     bool        `json:"connected"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	Version       string      `json:"version"`
	DataQuality   DataQuality `json:"data_quality"`
	RegisteredAt  time.Time   `json:"registered_at"`
}

// ModuleView pairs a stored status with its classification at query time
type ModuleView struct {
	ModuleIntegrationStatus
	Classification DataQuality `json:"classification"`
	Flapping       bool        `json:"flapping"`
}
