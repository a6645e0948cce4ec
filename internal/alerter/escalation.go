package alerter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/metrics"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Trigger values reported on an Escalation
const (
	TriggerEngine = "engine"
	TriggerManual = "manual"
)

// Escalation describes one successful escalation handed to subscribers
type Escalation struct {
	Alert         types.Alert   `json:"alert"`
	PreviousLevel int           `json:"previous_level"`
	Level         int           `json:"level"`
	Age           time.Duration `json:"age"`
	Score         float64       `json:"score"`
	Trigger       string        `json:"trigger"`
	At            time.Time     `json:"at"`
}

// Subscriber is notified after every successful escalation. Delivery runs on
// its own goroutine and is bounded by the engine's notify timeout.
type Subscriber interface {
	Name() string
	HandleEscalation(ctx context.Context, evt Escalation) error
}

// EscalationPolicy defines when an unacknowledged alert moves up a tier
type EscalationPolicy struct {
	// BaseThreshold is the age at which the first tier is reached.
	BaseThreshold time.Duration
	// CriticalMultiplier scales the threshold for critical alerts.
	CriticalMultiplier float64
	// MaxLevel caps the tier.
	MaxLevel int
}

// Threshold returns the effective tier width for a severity
func (p EscalationPolicy) Threshold(severity types.Severity) time.Duration {
	if severity == types.SeverityCritical && p.CriticalMultiplier > 0 {
		return time.Duration(float64(p.BaseThreshold) * p.CriticalMultiplier)
	}
	return p.BaseThreshold
}

// Tier returns how many thresholds the alert's age (measured from createdAt)
// has crossed, capped at MaxLevel.
func (p EscalationPolicy) Tier(alert *types.Alert, now time.Time) int {
	threshold := p.Threshold(alert.Severity)
	if threshold <= 0 {
		return 0
	}
	age := now.Sub(alert.CreatedAt)
	if age < threshold {
		return 0
	}
	tier := int(age / threshold)
	if p.MaxLevel > 0 && tier > p.MaxLevel {
		tier = p.MaxLevel
	}
	return tier
}

// EscalationEngine scans the store for active alerts that aged into a new
// tier and escalates each of them by one level per pass.
type EscalationEngine struct {
	store         *Store
	clock         clockwork.Clock
	policy        EscalationPolicy
	notifyTimeout time.Duration
	log           zerolog.Logger
	metrics       *metrics.Metrics

	evalMu sync.Mutex

	subMu       sync.RWMutex
	subscribers []Subscriber

	inflight sync.WaitGroup
}

// NewEscalationEngine creates an engine evaluating store under policy
func NewEscalationEngine(store *Store, clk clockwork.Clock, policy EscalationPolicy, notifyTimeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *EscalationEngine {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	if policy.MaxLevel <= 0 {
		policy.MaxLevel = store.MaxEscalationLevel()
	}
	return &EscalationEngine{
		store:         store,
		clock:         clk,
		policy:        policy,
		notifyTimeout: notifyTimeout,
		log:           log.With().Str("component", "escalation").Logger(),
		metrics:       m,
	}
}

// Policy returns the engine's escalation policy
func (e *EscalationEngine) Policy() EscalationPolicy {
	return e.policy
}

// Subscribe registers a subscriber for escalation notifications
func (e *EscalationEngine) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, sub)
}

// Evaluate runs one pass over all active alerts and returns how many were
// escalated. A failure on one alert is logged and collected; the pass always
// continues with the remaining alerts.
func (e *EscalationEngine) Evaluate(ctx context.Context) (int, error) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	started := time.Now()
	defer func() { e.metrics.RecordEvaluation(time.Since(started)) }()

	now := e.clock.Now()
	var (
		errs      error
		escalated int
	)

	for _, alert := range e.store.Active() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		tier := e.policy.Tier(alert, now)
		if tier <= alert.EscalationLevel || alert.EscalationLevel >= e.policy.MaxLevel {
			continue
		}

		updated, changed, err := e.store.EscalateToTier(alert.ID, tier)
		if err != nil {
			e.log.Warn().
				Err(err).
				Str("alert_id", alert.ID).
				Msg("Failed to escalate alert")
			errs = multierr.Append(errs, fmt.Errorf("escalate alert %s: %w", alert.ID, err))
			continue
		}
		if !changed {
			continue
		}

		escalated++
		e.metrics.RecordEscalation(string(updated.Severity), TriggerEngine)
		e.log.Warn().
			Str("alert_id", updated.ID).
			Int("level", updated.EscalationLevel).
			Int("tier", tier).
			Dur("age", now.Sub(updated.CreatedAt)).
			Msg("Escalating unacknowledged alert")

		e.Notify(Escalation{
			Alert:         *updated,
			PreviousLevel: alert.EscalationLevel,
			Level:         updated.EscalationLevel,
			Age:           now.Sub(updated.CreatedAt),
			Score:         Score(updated),
			Trigger:       TriggerEngine,
			At:            now,
		})
	}

	return escalated, errs
}

// Notify dispatches evt to every subscriber without waiting for delivery
func (e *EscalationEngine) Notify(evt Escalation) {
	e.subMu.RLock()
	subs := make([]Subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.RUnlock()

	for _, sub := range subs {
		e.inflight.Add(1)
		go e.deliver(sub, evt)
	}
}

func (e *EscalationEngine) deliver(sub Subscriber, evt Escalation) {
	defer e.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordSubscriberFailure(sub.Name())
			e.log.Error().
				Str("subscriber", sub.Name()).
				Str("alert_id", evt.Alert.ID).
				Interface("panic", r).
				Msg("Escalation subscriber panicked")
		}
	}()

	if err := sub.HandleEscalation(ctx, evt); err != nil {
		e.metrics.RecordSubscriberFailure(sub.Name())
		e.log.Error().
			Err(err).
			Str("subscriber", sub.Name()).
			Str("alert_id", evt.Alert.ID).
			Msg("Escalation subscriber failed")
	}
}

// Wait blocks until all in-flight subscriber deliveries have returned
func (e *EscalationEngine) Wait() {
	e.inflight.Wait()
}
