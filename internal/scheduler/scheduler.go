// Package scheduler runs the periodic background jobs: the escalation pass
// and the module liveness sync.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one periodic unit of work
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler wraps a cron runner with fixed-interval jobs. Overlapping runs of
// the same job are skipped and panics are recovered.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	names   map[string]cron.EntryID
}

// New creates a stopped scheduler
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		), cron.WithLogger(cl)),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[string]cron.EntryID),
	}
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.names[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	id := s.cron.Schedule(cron.Every(job.Interval), cron.FuncJob(func() {
		s.runJob(job)
	}))
	s.names[job.Name] = id

	s.log.Debug().
		Str("job", job.Name).
		Dur("interval", job.Interval).
		Msg("Job registered")
	return nil
}

// RunNow executes a registered job synchronously, outside the schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.names[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Start begins running jobs on their schedules. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.names)).Msg("Scheduler started")
}

// Stop halts the schedule, cancels running jobs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	s.cancel()
	if !started {
		return nil
	}

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// Run starts the scheduler and blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Scheduler) runJob(job Job) {
	started := time.Now()
	if err := job.Run(s.ctx); err != nil {
		s.log.Warn().
			Err(err).
			Str("job", job.Name).
			Dur("duration", time.Since(started)).
			Msg("Job finished with errors")
		return
	}
	s.log.Debug().
		Str("job", job.Name).
		Dur("duration", time.Since(started)).
		Msg("Job finished")
}

// cronLogger routes cron's internal logging through zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
