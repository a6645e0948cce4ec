package alerter

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestStore(opts StoreOptions) (*Store, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(epoch)
	return NewStore(clk, opts, zerolog.Nop()), clk
}

func mustCreate(t *testing.T, s *Store, kind types.AlertKind, severity types.Severity) *types.Alert {
	t.Helper()
	a, err := s.Create(NewAlert{Kind: kind, Severity: severity, Title: string(severity) + " " + string(kind), Source: "test"})
	require.NoError(t, err)
	return a
}

// TestCreateValidatesInput checks enum and title validation.
func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(StoreOptions{})

	_, err := s.Create(NewAlert{Kind: "weather", Severity: types.SeverityLow, Title: "x"})
	require.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = s.Create(NewAlert{Kind: types.KindSystem, Severity: "urgent", Title: "x"})
	require.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = s.Create(NewAlert{Kind: types.KindSystem, Severity: types.SeverityLow, Title: "  "})
	require.True(t, errors.Is(err, types.ErrInvalidArgument))

	a, err := s.Create(NewAlert{
		Kind:     types.KindSystem,
		Severity: types.SeverityLow,
		Title:    "Disk filling",
		Metadata: map[string]any{"disk": "/var"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, types.StatusActive, a.Status)
	require.Equal(t, epoch, a.CreatedAt)
	require.Zero(t, a.EscalationLevel)
	require.False(t, a.Escalated)
	require.Equal(t, "/var", a.Metadata["disk"])
}

// TestStatusIsMonotonic checks active to acknowledged to resolved and that
// every backwards or repeated transition is a no-op.
func TestStatusIsMonotonic(t *testing.T) {
	t.Parallel()

	s, clk := newTestStore(StoreOptions{})
	a := mustCreate(t, s, types.KindSecurity, types.SeverityHigh)

	clk.Advance(2 * time.Minute)
	acked, changed, err := s.Acknowledge(a.ID, "alice")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.StatusAcknowledged, acked.Status)
	require.Equal(t, "alice", acked.AcknowledgedBy)
	require.Equal(t, epoch.Add(2*time.Minute), *acked.AcknowledgedAt)

	_, changed, err = s.Acknowledge(a.ID, "bob")
	require.NoError(t, err)
	require.False(t, changed)

	clk.Advance(3 * time.Minute)
	resolved, changed, err := s.Resolve(a.ID, "alice", "door re-secured")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.StatusResolved, resolved.Status)
	require.Equal(t, "door re-secured", resolved.Metadata[types.MetadataResolutionNote])

	again, changed, err := s.Resolve(a.ID, "bob", "other note")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, types.StatusResolved, again.Status)
	require.Equal(t, "alice", again.ResolvedBy)
	require.Equal(t, *resolved.ResolvedAt, *again.ResolvedAt)

	after, changed, err := s.Acknowledge(a.ID, "carol")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, types.StatusResolved, after.Status)
	require.Equal(t, "alice", after.AcknowledgedBy)
}

// TestResolveRequiresAcknowledgeWhenConfigured checks the optional policy.
func TestResolveRequiresAcknowledgeWhenConfigured(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(StoreOptions{RequireAcknowledgeBeforeResolve: true})
	a := mustCreate(t, s, types.KindSystem, types.SeverityLow)

	_, _, err := s.Resolve(a.ID, "alice", "")
	require.True(t, errors.Is(err, types.ErrInvalidTransition))

	_, _, err = s.Acknowledge(a.ID, "alice")
	require.NoError(t, err)
	_, changed, err := s.Resolve(a.ID, "alice", "")
	require.NoError(t, err)
	require.True(t, changed)
}

// TestUnknownIDsReturnNotFound checks NotFound on every lookup.
func TestUnknownIDsReturnNotFound(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(StoreOptions{})

	_, err := s.Get("missing")
	require.True(t, errors.Is(err, types.ErrNotFound))
	_, _, err = s.Acknowledge("missing", "a")
	require.True(t, errors.Is(err, types.ErrNotFound))
	_, _, err = s.Resolve("missing", "a", "")
	require.True(t, errors.Is(err, types.ErrNotFound))
	_, _, err = s.Escalate("missing")
	require.True(t, errors.Is(err, types.ErrNotFound))
	_, _, err = s.EscalateToTier("missing", 1)
	require.True(t, errors.Is(err, types.ErrNotFound))
}

// TestEscalateNeverDecreasesAndCaps checks level monotonicity, the cap and
// the no-op on resolved alerts.
func TestEscalateNeverDecreasesAndCaps(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(StoreOptions{MaxEscalationLevel: 2})
	a := mustCreate(t, s, types.KindSystem, types.SeverityMedium)

	prev := 0
	for i := 0; i < 4; i++ {
		updated, _, err := s.Escalate(a.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, updated.EscalationLevel, prev)
		prev = updated.EscalationLevel
	}
	require.Equal(t, 2, prev)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	require.True(t, got.Escalated)
	require.NotNil(t, got.LastEscalatedAt)
	require.Equal(t, 1, s.Stats().UnresolvedEscalated)

	b := mustCreate(t, s, types.KindSystem, types.SeverityMedium)
	_, _, err = s.Resolve(b.ID, "x", "")
	require.NoError(t, err)
	resolved, changed, err := s.Escalate(b.ID)
	require.NoError(t, err)
	require.False(t, changed)
	require.Zero(t, resolved.EscalationLevel)
}

// TestEscalateToTierSkipsAcknowledged checks that the engine path never
// escalates an acknowledged alert.
func TestEscalateToTierSkipsAcknowledged(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(StoreOptions{})
	a := mustCreate(t, s, types.KindSystem, types.SeverityMedium)

	_, _, err := s.Acknowledge(a.ID, "alice")
	require.NoError(t, err)

	updated, changed, err := s.EscalateToTier(a.ID, 1)
	require.NoError(t, err)
	require.False(t, changed)
	require.Zero(t, updated.EscalationLevel)
}

// TestListOrdersByPriorityAndFilters checks ordering, filters and limit.
func TestListOrdersByPriorityAndFilters(t *testing.T) {
	t.Parallel()

	s, clk := newTestStore(StoreOptions{})
	low := mustCreate(t, s, types.KindHealth, types.SeverityLow)
	clk.Advance(time.Second)
	medium := mustCreate(t, s, types.KindMaintenance, types.SeverityMedium)
	clk.Advance(time.Second)
	high := mustCreate(t, s, types.KindPerformance, types.SeverityHigh)
	clk.Advance(time.Second)
	critical := mustCreate(t, s, types.KindSecurity, types.SeverityCritical)

	all := s.List(Filter{})
	require.Len(t, all, 4)
	require.Equal(t, []string{critical.ID, high.ID, medium.ID, low.ID},
		[]string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	_, _, err := s.Acknowledge(high.ID, "a")
	require.NoError(t, err)

	active := s.List(Filter{Statuses: []types.AlertStatus{types.StatusActive}})
	require.Len(t, active, 3)

	kinds := s.List(Filter{Kinds: []types.AlertKind{types.KindHealth, types.KindMaintenance}})
	require.Len(t, kinds, 2)

	top := s.List(Filter{Limit: 1})
	require.Len(t, top, 1)
	require.Equal(t, critical.ID, top[0].ID)

	require.Empty(t, s.List(Filter{Source: "elsewhere"}))
	require.Len(t, s.List(Filter{Severities: []types.Severity{types.SeverityCritical}}), 1)
}

// TestStatsAggregatesLatencies checks counts and average latencies.
func TestStatsAggregatesLatencies(t *testing.T) {
	t.Parallel()

	s, clk := newTestStore(StoreOptions{})
	a := mustCreate(t, s, types.KindSecurity, types.SeverityCritical)
	b := mustCreate(t, s, types.KindSystem, types.SeverityLow)
	mustCreate(t, s, types.KindSystem, types.SeverityLow)

	clk.Advance(time.Minute)
	_, _, err := s.Acknowledge(a.ID, "x")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, _, err = s.Resolve(a.ID, "x", "")
	require.NoError(t, err)
	_, _, err = s.Acknowledge(b.ID, "x")
	require.NoError(t, err)

	stats := s.Stats()
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Active)
	require.Equal(t, 1, stats.Acknowledged)
	require.Equal(t, 1, stats.Resolved)
	require.Equal(t, 2, stats.BySeverity[types.SeverityLow])
	require.Equal(t, 2, stats.ByKind[types.KindSystem])
	require.Equal(t, 2, stats.Unresolved[types.SeverityLow])
	require.Zero(t, stats.Unresolved[types.SeverityCritical])
	require.Zero(t, stats.UnresolvedEscalated)
	require.InDelta(t, 1.0/3.0, stats.ResolvedFraction, 1e-9)
	require.Equal(t, 90*time.Second, stats.AvgAcknowledgeLatency)
	require.Equal(t, 2*time.Minute, stats.AvgResolutionLatency)
	require.InDelta(t, 120.0, stats.AvgResolutionSeconds, 1e-9)
}

// TestReturnedAlertsAreCopies checks callers cannot mutate stored state.
func TestReturnedAlertsAreCopies(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(StoreOptions{})
	a := mustCreate(t, s, types.KindSystem, types.SeverityLow)
	a.Status = types.StatusResolved
	a.Metadata["x"] = 1

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, got.Status)
	require.NotContains(t, got.Metadata, "x")
}
