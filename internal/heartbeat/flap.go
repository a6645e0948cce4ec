package heartbeat

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// FlapDetector tracks rapid connect/disconnect transitions of a module.
type FlapDetector struct {
	log       zerolog.Logger
	clock     clockwork.Clock
	threshold int           // number of transitions to mark a module flapping
	window    time.Duration // time window for threshold
	mu        sync.Mutex
	history   map[string][]time.Time // module id -> timestamps of transitions
	flapping  map[string]bool
}

// NewFlapDetector creates a new flap detector. A non-positive threshold
// disables detection.
func NewFlapDetector(log zerolog.Logger, clk clockwork.Clock, threshold int, window time.Duration) *FlapDetector {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &FlapDetector{
		log:       log.With().Str("component", "flap-detector").Logger(),
		clock:     clk,
		threshold: threshold,
		window:    window,
		history:   make(map[string][]time.Time),
		flapping:  make(map[string]bool),
	}
}

// RecordChange records a transition and returns whether the module is flapping.
// justStarted is true only on the transition that crossed the threshold.
func (f *FlapDetector) RecordChange(moduleID string) (flapping bool, justStarted bool) {
	if f.threshold <= 0 {
		return false, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	pruned := f.recentLocked(moduleID, now)
	pruned = append(pruned, now)
	f.history[moduleID] = pruned

	if len(pruned) < f.threshold {
		return false, false
	}

	wasFlapping := f.flapping[moduleID]
	f.flapping[moduleID] = true
	if !wasFlapping {
		f.log.Warn().Str("module_id", moduleID).Int("changes", len(pruned)).Msg("Module flapping detected")
		return true, true
	}
	return true, false
}

// IsFlapping returns whether a module is currently marked as flapping.
func (f *FlapDetector) IsFlapping(moduleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flapping[moduleID]
}

// Cleanup drops transitions older than the window and clears the flapping
// mark of modules that have settled. Call periodically.
func (f *FlapDetector) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	for id := range f.history {
		pruned := f.recentLocked(id, now)
		if len(pruned) == 0 {
			delete(f.history, id)
		} else {
			f.history[id] = pruned
		}
		if f.flapping[id] && len(pruned) < f.threshold {
			delete(f.flapping, id)
			f.log.Info().Str("module_id", id).Msg("Module flapping stopped")
		}
	}
}

func (f *FlapDetector) recentLocked(moduleID string, now time.Time) []time.Time {
	cutoff := now.Add(-f.window)
	timestamps := f.history[moduleID]
	pruned := make([]time.Time, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}
