package alerter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
)

// StoreOptions tunes lifecycle rules of the alert store
type StoreOptions struct {
	// MaxEscalationLevel caps escalationLevel; escalating beyond it is a no-op.
	MaxEscalationLevel int
	// RequireAcknowledgeBeforeResolve rejects resolving an alert that was
	// never acknowledged with ErrInvalidTransition.
	RequireAcknowledgeBeforeResolve bool
}

// NewAlert carries the fields supplied by a reporting collaborator
type NewAlert struct {
	Kind     types.AlertKind
	Severity types.Severity
	Title    string
	Message  string
	Source   string
	Metadata map[string]any
}

// Store owns the alert collection and every lifecycle transition on it.
// Alerts are never deleted within the process lifetime.
type Store struct {
	clock  clockwork.Clock
	opts   StoreOptions
	logger zerolog.Logger
	alerts map[string]*types.Alert
	mu     sync.RWMutex
}

// NewStore creates an empty alert store
func NewStore(clk clockwork.Clock, opts StoreOptions, logger zerolog.Logger) *Store {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if opts.MaxEscalationLevel <= 0 {
		opts.MaxEscalationLevel = 3
	}
	return &Store{
		clock:  clk,
		opts:   opts,
		logger: logger.With().Str("component", "alert-store").Logger(),
		alerts: make(map[string]*types.Alert),
	}
}

// MaxEscalationLevel reports the configured escalation cap
func (s *Store) MaxEscalationLevel() int {
	return s.opts.MaxEscalationLevel
}

// Create validates and stores a new active alert
func (s *Store) Create(req NewAlert) (*types.Alert, error) {
	if _, err := types.ParseAlertKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if _, err := types.ParseSeverity(string(req.Severity)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("alert title is required: %w", types.ErrInvalidArgument)
	}

	alert := &types.Alert{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Severity:  req.Severity,
		Title:     req.Title,
		Message:   req.Message,
		Source:    req.Source,
		CreatedAt: s.clock.Now(),
		Status:    types.StatusActive,
		Metadata:  make(map[string]any, len(req.Metadata)),
	}
	for k, v := range req.Metadata {
		alert.Metadata[k] = v
	}

	s.mu.Lock()
	s.alerts[alert.ID] = alert
	s.mu.Unlock()

	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("kind", string(alert.Kind)).
		Str("severity", string(alert.Severity)).
		Str("source", alert.Source).
		Msg("Alert created")

	return alert.Clone(), nil
}

// Get returns a copy of one alert
func (s *Store) Get(id string) (*types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, notFound(id)
	}
	return alert.Clone(), nil
}

// Acknowledge moves an active alert to acknowledged. It reports whether the
// alert changed; acknowledged or resolved alerts are left untouched.
func (s *Store) Acknowledge(id, by string) (*types.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, false, notFound(id)
	}
	if alert.Status != types.StatusActive {
		return alert.Clone(), false, nil
	}

	now := s.clock.Now()
	alert.Status = types.StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = by

	s.logger.Info().
		Str("alert_id", id).
		Str("acknowledged_by", by).
		Dur("latency", now.Sub(alert.CreatedAt)).
		Msg("Alert acknowledged")

	return alert.Clone(), true, nil
}

// Resolve moves an active or acknowledged alert to the terminal resolved
// state and stores the note in metadata. Resolving twice is a no-op.
func (s *Store) Resolve(id, by, note string) (*types.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, false, notFound(id)
	}
	if alert.Status == types.StatusResolved {
		return alert.Clone(), false, nil
	}
	if s.opts.RequireAcknowledgeBeforeResolve && alert.Status == types.StatusActive {
		return nil, false, fmt.Errorf("alert %s must be acknowledged before resolve: %w", id, types.ErrInvalidTransition)
	}

	now := s.clock.Now()
	alert.Status = types.StatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = by
	if note != "" {
		if alert.Metadata == nil {
			alert.Metadata = make(map[string]any)
		}
		alert.Metadata[types.MetadataResolutionNote] = note
	}

	s.logger.Info().
		Str("alert_id", id).
		Str("resolved_by", by).
		Dur("duration", now.Sub(alert.CreatedAt)).
		Msg("Alert resolved")

	return alert.Clone(), true, nil
}

// Escalate raises the escalation level of an unresolved alert by one.
// At the maximum level, or once resolved, it is a no-op.
func (s *Store) Escalate(id string) (*types.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, false, notFound(id)
	}
	return s.escalateLocked(alert, alert.EscalationLevel+1)
}

// EscalateToTier escalates by one level only while the alert is still active
// and its level is below tier. The check and the increment happen under the
// same lock, so an acknowledgment racing the evaluation always wins.
func (s *Store) EscalateToTier(id string, tier int) (*types.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, false, notFound(id)
	}
	if alert.Status != types.StatusActive {
		return alert.Clone(), false, nil
	}
	return s.escalateLocked(alert, tier)
}

func (s *Store) escalateLocked(alert *types.Alert, tier int) (*types.Alert, bool, error) {
	if alert.Status == types.StatusResolved ||
		alert.EscalationLevel >= s.opts.MaxEscalationLevel ||
		alert.EscalationLevel >= tier {
		return alert.Clone(), false, nil
	}

	now := s.clock.Now()
	alert.EscalationLevel++
	alert.Escalated = true
	alert.LastEscalatedAt = &now

	s.logger.Warn().
		Str("alert_id", alert.ID).
		Int("level", alert.EscalationLevel).
		Str("severity", string(alert.Severity)).
		Msg("Alert escalated")

	return alert.Clone(), true, nil
}

// Active returns copies of every alert still in the active state
func (s *Store) Active() []*types.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if alert.Status == types.StatusActive {
			out = append(out, alert.Clone())
		}
	}
	return out
}

// List returns alerts matching the filter in priority order
func (s *Store) List(filter Filter) []*types.Alert {
	s.mu.RLock()
	out := make([]*types.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if filter.Match(alert) {
			out = append(out, alert.Clone())
		}
	}
	s.mu.RUnlock()

	SortByPriority(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Stats aggregates counts and latencies over every alert ever created
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		ByStatus:   make(map[types.AlertStatus]int),
		BySeverity: make(map[types.Severity]int),
		ByKind:     make(map[types.AlertKind]int),
		Unresolved: make(map[types.Severity]int),
	}

	var (
		ackTotal, resolveTotal time.Duration
		ackCount, resolveCount int
	)

	for _, alert := range s.alerts {
		stats.Total++
		stats.ByStatus[alert.Status]++
		stats.BySeverity[alert.Severity]++
		stats.ByKind[alert.Kind]++

		if alert.Escalated {
			stats.Escalated++
		}
		if alert.Status != types.StatusResolved {
			stats.Unresolved[alert.Severity]++
			if alert.Escalated {
				stats.UnresolvedEscalated++
			}
		}
		if alert.AcknowledgedAt != nil {
			ackTotal += alert.AcknowledgedAt.Sub(alert.CreatedAt)
			ackCount++
		}
		if alert.ResolvedAt != nil {
			resolveTotal += alert.ResolvedAt.Sub(alert.CreatedAt)
			resolveCount++
		}
	}

	stats.Active = stats.ByStatus[types.StatusActive]
	stats.Acknowledged = stats.ByStatus[types.StatusAcknowledged]
	stats.Resolved = stats.ByStatus[types.StatusResolved]

	if stats.Total > 0 {
		stats.ResolvedFraction = float64(stats.Resolved) / float64(stats.Total)
	}
	if ackCount > 0 {
		stats.AvgAcknowledgeLatency = ackTotal / time.Duration(ackCount)
	}
	if resolveCount > 0 {
		stats.AvgResolutionLatency = resolveTotal / time.Duration(resolveCount)
	}
	stats.AvgAcknowledgeSeconds = stats.AvgAcknowledgeLatency.Seconds()
	stats.AvgResolutionSeconds = stats.AvgResolutionLatency.Seconds()

	return stats
}

func notFound(id string) error {
	return fmt.Errorf("alert %s: %w", id, types.ErrNotFound)
}
