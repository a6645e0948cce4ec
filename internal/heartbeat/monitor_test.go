package heartbeat

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

func newTestMonitor(flapThreshold int) (*Monitor, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(epoch)
	var flaps *FlapDetector
	if flapThreshold > 0 {
		flaps = NewFlapDetector(zerolog.Nop(), clk, flapThreshold, 2*time.Minute)
	}
	return NewMonitor(clk, DefaultCutoffs, flaps, zerolog.Nop()), clk
}

// TestCutoffsClassify checks the pure classification rule.
func TestCutoffsClassify(t *testing.T) {
	t.Parallel()

	c := DefaultCutoffs
	require.Equal(t, types.QualityGood, c.Classify(true, 10*time.Second, types.QualityGood))
	require.Equal(t, types.QualityDegraded, c.Classify(true, 45*time.Second, types.QualityGood))
	require.Equal(t, types.QualityPoor, c.Classify(true, 65*time.Second, types.QualityGood))
	require.Equal(t, types.QualityPoor, c.Classify(false, 0, types.QualityGood))
	require.Equal(t, types.QualityDegraded, c.Classify(true, time.Second, types.QualityDegraded))
	require.Equal(t, types.QualityGood, c.Classify(true, time.Second, ""))
}

// TestClassifyByElapsedTime checks 10s good, 45s degraded and 65s poor
// against a registered module.
func TestClassifyByElapsedTime(t *testing.T) {
	t.Parallel()

	m, clk := newTestMonitor(0)
	_, err := m.Register("sensor-7", "1.2.0")
	require.NoError(t, err)

	elapsed := time.Duration(0)
	for _, tc := range []struct {
		elapsed time.Duration
		want    types.DataQuality
	}{
		{10 * time.Second, types.QualityGood},
		{45 * time.Second, types.QualityDegraded},
		{65 * time.Second, types.QualityPoor},
	} {
		clk.Advance(tc.elapsed - elapsed)
		elapsed = tc.elapsed
		got, err := m.Classify("sensor-7")
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "elapsed %s", tc.elapsed)
	}
}

// TestCameraModuleScenario registers cam-01, lets it go silent, then
// disconnects it.
func TestCameraModuleScenario(t *testing.T) {
	t.Parallel()

	m, clk := newTestMonitor(0)
	_, err := m.Register("cam-01", "2.0.1")
	require.NoError(t, err)
	_, err = m.Register("cam-02", "2.0.1")
	require.NoError(t, err)

	got, err := m.Classify("cam-01")
	require.NoError(t, err)
	require.Equal(t, types.QualityGood, got)

	clk.Advance(61 * time.Second)
	got, err = m.Classify("cam-01")
	require.NoError(t, err)
	require.Equal(t, types.QualityPoor, got)

	before := m.ConnectedCount()
	require.NoError(t, m.Disconnect("cam-01"))
	require.Equal(t, before-1, m.ConnectedCount())

	require.NoError(t, m.Disconnect("cam-01"))
	require.Equal(t, before-1, m.ConnectedCount())

	require.NoError(t, m.Heartbeat("cam-01"))
	got, err = m.Classify("cam-01")
	require.NoError(t, err)
	require.Equal(t, types.QualityGood, got)
	require.Equal(t, before, m.ConnectedCount())
}

// TestHeartbeatUnknownModule checks that heartbeats never auto-register.
func TestHeartbeatUnknownModule(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor(0)

	require.True(t, errors.Is(m.Heartbeat("ghost"), types.ErrNotFound))
	require.True(t, errors.Is(m.Disconnect("ghost"), types.ErrNotFound))
	require.True(t, errors.Is(m.ReportQuality("ghost", types.QualityGood), types.ErrNotFound))
	_, err := m.Classify("ghost")
	require.True(t, errors.Is(err, types.ErrNotFound))
	require.Zero(t, m.ConnectedCount())
	require.Empty(t, m.Statuses())

	_, err = m.Register("", "1")
	require.True(t, errors.Is(err, types.ErrInvalidArgument))
}

// TestReportQualityAffectsFreshModules checks stored quality is returned
// while the module is fresh and ignored once the cutoffs apply.
func TestReportQualityAffectsFreshModules(t *testing.T) {
	t.Parallel()

	m, clk := newTestMonitor(0)
	_, err := m.Register("hvac-1", "0.9")
	require.NoError(t, err)

	require.True(t, errors.Is(m.ReportQuality("hvac-1", "excellent"), types.ErrInvalidArgument))
	require.NoError(t, m.ReportQuality("hvac-1", types.QualityDegraded))

	got, err := m.Classify("hvac-1")
	require.NoError(t, err)
	require.Equal(t, types.QualityDegraded, got)

	clk.Advance(70 * time.Second)
	got, err = m.Classify("hvac-1")
	require.NoError(t, err)
	require.Equal(t, types.QualityPoor, got)
}

// TestRegisterOverwrites checks re-registration resets the record.
func TestRegisterOverwrites(t *testing.T) {
	t.Parallel()

	m, clk := newTestMonitor(0)
	_, err := m.Register("door-1", "1.0")
	require.NoError(t, err)
	require.NoError(t, m.Disconnect("door-1"))

	clk.Advance(time.Minute)
	status, err := m.Register("door-1", "1.1")
	require.NoError(t, err)
	require.True(t, status.Connected)
	require.Equal(t, "1.1", status.Version)
	require.Equal(t, epoch.Add(time.Minute), status.LastHeartbeat)
	require.Equal(t, types.QualityGood, status.DataQuality)
	require.Equal(t, 1, m.ConnectedCount())
}

// TestStatusesSortedWithFlapping checks ordering and the flapping flag.
func TestStatusesSortedWithFlapping(t *testing.T) {
	t.Parallel()

	m, clk := newTestMonitor(4)
	_, err := m.Register("b-mod", "1")
	require.NoError(t, err)
	_, err = m.Register("a-mod", "1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		clk.Advance(5 * time.Second)
		require.NoError(t, m.Disconnect("b-mod"))
		clk.Advance(5 * time.Second)
		require.NoError(t, m.Heartbeat("b-mod"))
	}

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	require.Equal(t, "a-mod", statuses[0].ModuleID)
	require.False(t, statuses[0].Flapping)
	require.Equal(t, "b-mod", statuses[1].ModuleID)
	require.True(t, statuses[1].Flapping)
	require.Equal(t, types.QualityGood, statuses[1].Classification)

	clk.Advance(5 * time.Minute)
	m.Sweep()
	require.False(t, m.Statuses()[1].Flapping)
}

// TestFlapDetectorThreshold checks flapping starts once and is disabled by a
// zero threshold.
func TestFlapDetectorThreshold(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClockAt(epoch)
	f := NewFlapDetector(zerolog.Nop(), clk, 3, time.Minute)

	flapping, started := f.RecordChange("m")
	require.False(t, flapping)
	require.False(t, started)
	f.RecordChange("m")
	flapping, started = f.RecordChange("m")
	require.True(t, flapping)
	require.True(t, started)
	flapping, started = f.RecordChange("m")
	require.True(t, flapping)
	require.False(t, started)
	require.True(t, f.IsFlapping("m"))

	clk.Advance(2 * time.Minute)
	f.Cleanup()
	require.False(t, f.IsFlapping("m"))

	off := NewFlapDetector(zerolog.Nop(), clk, 0, time.Minute)
	for i := 0; i < 10; i++ {
		flapping, _ = off.RecordChange("m")
		require.False(t, flapping)
	}
}
