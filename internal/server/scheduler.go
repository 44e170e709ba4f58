package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricepoint-intel/internal/pipeline"
)

// Runner is one scheduled unit of work.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// SchedulerStatus is the snapshot served on /status.
type SchedulerStatus struct {
	Interval  string    `json:"interval"`
	Started   time.Time `json:"started"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	Running   bool      `json:"running"`
}

// Scheduler runs the analysis pipeline immediately and then on every tick.
// A tick that fires while a run is in progress is skipped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   zerolog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	started  time.Time
	lastRun  time.Time
	lastErr  error
	runs     int
	failures int
	running  bool
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the loop until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = s.clock()
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Msg("pipeline scheduler started")
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes the runner unless a run is already in progress.
// It reports whether the runner was invoked.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("pipeline already running, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	start := time.Now()
	res, err := s.runner.Run(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = s.clock()
	s.lastErr = err
	s.runs++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("pipeline run failed")
		return true
	}
	ev := s.logger.Info().Dur("elapsed", time.Since(start))
	if res != nil && res.Report != nil {
		ev = ev.Int("anomalies", len(res.Report.Anomalies)).
			Int("benchmarks", len(res.Report.Benchmarks)).
			Int("files", len(res.Files))
	}
	ev.Msg("pipeline run completed")
	return true
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStatus{
		Interval: s.interval.String(),
		Started:  s.started,
		LastRun:  s.lastRun,
		Runs:     s.runs,
		Failures: s.failures,
		Running:  s.running,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
