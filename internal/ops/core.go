// Package ops is the query and mutation surface presentation callers use.
// It composes the alert store, escalation engine, protocol orchestrator,
// heartbeat monitor and health view, and publishes every accepted change on
// the event bus.
package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/events"
	"github.com/opsguard/opsguard/internal/health"
	"github.com/opsguard/opsguard/internal/heartbeat"
	"github.com/opsguard/opsguard/internal/metrics"
	"github.com/opsguard/opsguard/internal/protocol"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
)

// Options wires the core. Zero values fall back to package defaults.
type Options struct {
	Clock   clockwork.Clock
	Metrics *metrics.Metrics
	Bus     *events.Bus

	Store         alerter.StoreOptions
	Policy        alerter.EscalationPolicy
	NotifyTimeout time.Duration

	Cutoffs       heartbeat.Cutoffs
	FlapThreshold int
	FlapWindow    time.Duration

	// Catalog seeds the orchestrator; nil uses protocol.DefaultCatalog.
	Catalog  []types.EmergencyProtocol
	Triggers []protocol.TriggerRule
}

// Core owns every stateful component of the process
type Core struct {
	clock     clockwork.Clock
	log       zerolog.Logger
	metrics   *metrics.Metrics
	bus       *events.Bus
	alerts    *alerter.Store
	engine    *alerter.EscalationEngine
	protocols *protocol.Orchestrator
	modules   *heartbeat.Monitor
	view      *health.View
}

// New builds the core and subscribes the event bus and the protocol trigger
// to escalations
func New(opts Options, log zerolog.Logger) *Core {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(256)
	}
	if opts.Policy.BaseThreshold <= 0 {
		opts.Policy.BaseThreshold = 30 * time.Minute
	}
	if opts.Policy.CriticalMultiplier <= 0 {
		opts.Policy.CriticalMultiplier = 0.5
	}
	if opts.Policy.MaxLevel <= 0 {
		opts.Policy.MaxLevel = opts.Store.MaxEscalationLevel
	}
	if opts.Store.MaxEscalationLevel <= 0 {
		opts.Store.MaxEscalationLevel = opts.Policy.MaxLevel
	}

	store := alerter.NewStore(clk, opts.Store, log)
	engine := alerter.NewEscalationEngine(store, clk, opts.Policy, opts.NotifyTimeout, opts.Metrics, log)
	orchestrator := protocol.NewOrchestrator(clk, opts.Catalog, opts.Metrics, log)

	var flaps *heartbeat.FlapDetector
	if opts.FlapThreshold > 0 {
		flaps = heartbeat.NewFlapDetector(log, clk, opts.FlapThreshold, opts.FlapWindow)
	}
	monitor := heartbeat.NewMonitor(clk, opts.Cutoffs, flaps, log)

	c := &Core{
		clock:     clk,
		log:       log.With().Str("component", "core").Logger(),
		metrics:   opts.Metrics,
		bus:       bus,
		alerts:    store,
		engine:    engine,
		protocols: orchestrator,
		modules:   monitor,
		view:      health.NewView(store, orchestrator, monitor, clk),
	}

	engine.Subscribe(&escalationPublisher{bus: bus})
	if len(opts.Triggers) > 0 {
		engine.Subscribe(protocol.NewTriggerSubscriber(c, opts.Triggers, log))
	}
	return c
}

// Subscribe adds an escalation subscriber such as the notifier
func (c *Core) Subscribe(sub alerter.Subscriber) {
	c.engine.Subscribe(sub)
}

// Events returns the lifecycle event bus
func (c *Core) Events() *events.Bus {
	return c.bus
}

// Metrics returns the metrics set, possibly nil
func (c *Core) Metrics() *metrics.Metrics {
	return c.metrics
}

// ---- Alerts ----

// CreateAlert validates and stores a new active alert
func (c *Core) CreateAlert(req alerter.NewAlert) (*types.Alert, error) {
	alert, err := c.alerts.Create(req)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordAlertCreated(string(alert.Kind), string(alert.Severity))
	c.publish(events.AlertCreated, alert.ID, fmt.Sprintf("%s alert: %s", alert.Severity, alert.Title), alert)
	return alert, nil
}

// GetAlert returns one alert
func (c *Core) GetAlert(id string) (*types.Alert, error) {
	return c.alerts.Get(id)
}

// ListAlerts returns alerts matching filter in priority order
func (c *Core) ListAlerts(filter alerter.Filter) []*types.Alert {
	return c.alerts.List(filter)
}

// AlertStats aggregates over every alert
func (c *Core) AlertStats() alerter.Stats {
	return c.alerts.Stats()
}

// AcknowledgeAlert moves an active alert to acknowledged
func (c *Core) AcknowledgeAlert(id, by string) (*types.Alert, bool, error) {
	alert, changed, err := c.alerts.Acknowledge(id, by)
	if err != nil || !changed {
		return alert, changed, err
	}
	c.metrics.RecordTransition(string(types.StatusAcknowledged))
	c.publish(events.AlertAcknowledged, id, "Alert acknowledged by "+by, alert)
	return alert, true, nil
}

// ResolveAlert moves an unresolved alert to resolved
func (c *Core) ResolveAlert(id, by, note string) (*types.Alert, bool, error) {
	alert, changed, err := c.alerts.Resolve(id, by, note)
	if err != nil || !changed {
		return alert, changed, err
	}
	c.metrics.RecordTransition(string(types.StatusResolved))
	c.publish(events.AlertResolved, id, "Alert resolved by "+by, alert)
	return alert, true, nil
}

// EscalateAlert raises an alert by one level on operator request.
// Subscribers are notified exactly as for engine escalations.
func (c *Core) EscalateAlert(id string) (*types.Alert, bool, error) {
	alert, changed, err := c.alerts.Escalate(id)
	if err != nil || !changed {
		return alert, changed, err
	}

	now := c.clock.Now()
	c.metrics.RecordEscalation(string(alert.Severity), alerter.TriggerManual)
	c.engine.Notify(alerter.Escalation{
		Alert:         *alert,
		PreviousLevel: alert.EscalationLevel - 1,
		Level:         alert.EscalationLevel,
		Age:           now.Sub(alert.CreatedAt),
		Score:         alerter.Score(alert),
		Trigger:       alerter.TriggerManual,
		At:            now,
	})
	return alert, true, nil
}

// EvaluateEscalations runs one escalation pass
func (c *Core) EvaluateEscalations(ctx context.Context) (int, error) {
	return c.engine.Evaluate(ctx)
}

// EscalationPolicy reports the active escalation policy
func (c *Core) EscalationPolicy() alerter.EscalationPolicy {
	return c.engine.Policy()
}

// ---- Protocols ----

// ActivateProtocol activates a protocol; false when it was already active
func (c *Core) ActivateProtocol(protocolID, activatedBy string) (bool, error) {
	changed, err := c.protocols.Activate(protocolID, activatedBy)
	if err != nil || !changed {
		return changed, err
	}
	c.publishProtocol(events.ProtocolActivated, protocolID, "Protocol activated by "+activatedBy)
	return true, nil
}

// StartDrill runs an inactive protocol in testing mode
func (c *Core) StartDrill(protocolID, startedBy string) (bool, error) {
	changed, err := c.protocols.StartDrill(protocolID, startedBy)
	if err != nil || !changed {
		return changed, err
	}
	c.publishProtocol(events.ProtocolDrill, protocolID, "Drill started by "+startedBy)
	return true, nil
}

// DeactivateProtocol returns a protocol to inactive
func (c *Core) DeactivateProtocol(protocolID string) (bool, error) {
	changed, err := c.protocols.Deactivate(protocolID)
	if err != nil || !changed {
		return changed, err
	}
	c.publishProtocol(events.ProtocolDeactivated, protocolID, "Protocol deactivated")
	return true, nil
}

// CompleteStep marks one protocol step completed
func (c *Core) CompleteStep(protocolID, stepID, completedBy string) (bool, error) {
	changed, err := c.protocols.CompleteStep(protocolID, stepID, completedBy)
	if err != nil || !changed {
		return changed, err
	}
	done, total, _ := c.protocols.Progress(protocolID)
	c.publishProtocol(events.ProtocolStepDone, protocolID,
		fmt.Sprintf("Step %s completed by %s (%d/%d)", stepID, completedBy, done, total))
	return true, nil
}

// GetProtocol returns one protocol
func (c *Core) GetProtocol(protocolID string) (*types.EmergencyProtocol, error) {
	return c.protocols.Get(protocolID)
}

// ProtocolProgress returns completed and total step counts
func (c *Core) ProtocolProgress(protocolID string) (int, int, error) {
	return c.protocols.Progress(protocolID)
}

// ListProtocols returns the full catalog
func (c *Core) ListProtocols() []*types.EmergencyProtocol {
	return c.protocols.ListAll()
}

// ListActiveProtocols returns active protocols; drills are excluded
func (c *Core) ListActiveProtocols() []*types.EmergencyProtocol {
	return c.protocols.ListActive()
}

// ---- Modules ----

// RegisterModule inserts or overwrites a module record
func (c *Core) RegisterModule(moduleID, version string) (*types.ModuleIntegrationStatus, error) {
	status, err := c.modules.Register(moduleID, version)
	if err != nil {
		return nil, err
	}
	c.publish(events.ModuleRegistered, moduleID, "Module registered at version "+version, status)
	return status, nil
}

// Heartbeat refreshes a registered module's last contact time
func (c *Core) Heartbeat(moduleID string) error {
	return c.modules.Heartbeat(moduleID)
}

// DisconnectModule marks a module disconnected
func (c *Core) DisconnectModule(moduleID string) error {
	if err := c.modules.Disconnect(moduleID); err != nil {
		return err
	}
	c.publish(events.ModuleDisconnected, moduleID, "Module disconnected", nil)
	return nil
}

// ReportModuleQuality stores the quality a module reports for itself
func (c *Core) ReportModuleQuality(moduleID string, quality types.DataQuality) error {
	return c.modules.ReportQuality(moduleID, quality)
}

// ClassifyModule returns the current liveness classification of a module
func (c *Core) ClassifyModule(moduleID string) (types.DataQuality, error) {
	return c.modules.Classify(moduleID)
}

// ModuleStatuses returns every module with its classification
func (c *Core) ModuleStatuses() []types.ModuleView {
	return c.modules.Statuses()
}

// ConnectedModules counts connected modules
func (c *Core) ConnectedModules() int {
	return c.modules.ConnectedCount()
}

// ---- Health ----

// HealthSnapshot recomputes the aggregate health summary
func (c *Core) HealthSnapshot() health.Snapshot {
	return c.view.Snapshot()
}

// SyncLiveness expires flap history and refreshes the state gauges. It is
// run periodically by the liveness sync job.
func (c *Core) SyncLiveness(_ context.Context) error {
	c.modules.Sweep()

	if c.metrics == nil {
		return nil
	}
	byClass := map[string]int{
		string(types.QualityGood):     0,
		string(types.QualityDegraded): 0,
		string(types.QualityPoor):     0,
	}
	for _, m := range c.modules.Statuses() {
		byClass[string(m.Classification)]++
	}
	c.metrics.SetModules(byClass)

	bySeverity := make(map[string]int)
	for severity, n := range c.alerts.Stats().Unresolved {
		bySeverity[string(severity)] = n
	}
	c.metrics.SetUnresolvedAlerts(bySeverity)
	c.metrics.SetActiveProtocols(len(c.protocols.ListActive()))
	return nil
}

// Wait blocks until in-flight escalation deliveries finish
func (c *Core) Wait() {
	c.engine.Wait()
}

func (c *Core) publishProtocol(typ events.EventType, protocolID, summary string) {
	p, err := c.protocols.Get(protocolID)
	if err != nil {
		return
	}
	c.publish(typ, protocolID, summary, p)
}

func (c *Core) publish(typ events.EventType, subject, summary string, detail any) {
	c.bus.Publish(events.Event{
		Type:      typ,
		Subject:   subject,
		Summary:   summary,
		Detail:    detail,
		Timestamp: c.clock.Now(),
	})
}

// escalationPublisher forwards every escalation onto the event bus
type escalationPublisher struct {
	bus *events.Bus
}

func (p *escalationPublisher) Name() string {
	return "event-bus"
}

func (p *escalationPublisher) HandleEscalation(_ context.Context, evt alerter.Escalation) error {
	p.bus.Publish(events.Event{
		Type:      events.AlertEscalated,
		Subject:   evt.Alert.ID,
		Summary:   fmt.Sprintf("Alert escalated to level %d (%s)", evt.Level, evt.Trigger),
		Detail:    evt,
		Timestamp: evt.At,
	})
	return nil
}
