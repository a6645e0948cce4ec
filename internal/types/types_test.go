package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseEnumsRejectUnknownValues checks every parser wraps ErrInvalidArgument.
func TestParseEnumsRejectUnknownValues(t *testing.T) {
	t.Parallel()

	k, err := ParseAlertKind("security")
	require.NoError(t, err)
	require.Equal(t, KindSecurity, k)

	s, err := ParseSeverity("critical")
	require.NoError(t, err)
	require.Equal(t, SeverityCritical, s)

	st, err := ParseAlertStatus("acknowledged")
	require.NoError(t, err)
	require.Equal(t, StatusAcknowledged, st)

	q, err := ParseDataQuality("degraded")
	require.NoError(t, err)
	require.Equal(t, QualityDegraded, q)

	pk, err := ParseProtocolKind("evacuation")
	require.NoError(t, err)
	require.Equal(t, ProtocolEvacuation, pk)

	for _, parse := range []func() error{
		func() error { _, err := ParseAlertKind("weather"); return err },
		func() error { _, err := ParseSeverity("urgent"); return err },
		func() error { _, err := ParseAlertStatus("closed"); return err },
		func() error { _, err := ParseDataQuality("excellent"); return err },
		func() error { _, err := ParseProtocolKind("flood"); return err },
	} {
		require.True(t, errors.Is(parse(), ErrInvalidArgument))
	}
}

// TestRanksAreOrdered checks severity and status ordering.
func TestRanksAreOrdered(t *testing.T) {
	t.Parallel()

	require.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	require.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	require.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())

	require.Less(t, StatusActive.Rank(), StatusAcknowledged.Rank())
	require.Less(t, StatusAcknowledged.Rank(), StatusResolved.Rank())
}

// TestAlertCloneIsDeep checks that mutating a clone leaves the original intact.
func TestAlertCloneIsDeep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	orig := &Alert{
		ID:             "a",
		AcknowledgedAt: &now,
		Metadata:       map[string]any{"zone": "north"},
	}

	c := orig.Clone()
	c.Metadata["zone"] = "south"
	*c.AcknowledgedAt = now.Add(time.Hour)

	require.Equal(t, "north", orig.Metadata["zone"])
	require.Equal(t, now, *orig.AcknowledgedAt)
}

// TestProtocolCloneAndProgress checks step copying and completed counting.
func TestProtocolCloneAndProgress(t *testing.T) {
	t.Parallel()

	p := &EmergencyProtocol{
		ID: "p",
		Steps: []ProtocolStep{
			{ID: "s1", Order: 1, Completed: true},
			{ID: "s2", Order: 2},
		},
	}
	require.Equal(t, 1, p.CompletedSteps())

	c := p.Clone()
	c.Steps[1].Completed = true
	require.Equal(t, 2, c.CompletedSteps())
	require.Equal(t, 1, p.CompletedSteps())
}
