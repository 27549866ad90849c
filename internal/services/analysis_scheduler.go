package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irfndi/gutsense-go/internal/config"
	"github.com/irfndi/gutsense-go/internal/correlation"
	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/irfndi/gutsense-go/internal/observability"
)

// ErrRunInProgress is returned by RunNow while another run is executing.
var ErrRunInProgress = errors.New("correlation run already in progress")

// CorrelationRunner executes one full analysis run.
type CorrelationRunner interface {
	Run(ctx context.Context) (*correlation.RunReport, error)
}

// RunPruner drops old result runs after a successful run.
type RunPruner interface {
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// SchedulerStatus is a snapshot of the scheduler's last run.
type SchedulerStatus struct {
	Running    bool                   `json:"running"`
	Interval   string                 `json:"interval"`
	LastRunAt  *time.Time             `json:"last_run_at,omitempty"`
	LastReport *correlation.RunReport `json:"last_report,omitempty"`
	LastError  string                 `json:"last_error,omitempty"`
	Runs       int64                  `json:"runs"`
	Failures   int64                  `json:"failures"`
	Skipped    int64                  `json:"skipped"`  // scheduled ticks skipped
	Rejected   int64                  `json:"rejected"` // manual runs refused
}

// AnalysisScheduler runs the correlation engine on a fixed interval. At most
// one run executes at a time; a tick that finds a run in progress is skipped.
type AnalysisScheduler struct {
	runner   CorrelationRunner
	pruner   RunPruner
	logger   *logging.StandardLogger
	interval time.Duration
	timeout  time.Duration
	keepRuns int

	running  atomic.Bool
	runs     atomic.Int64
	fails    atomic.Int64
	skipped  atomic.Int64
	rejected atomic.Int64

	mu         sync.RWMutex
	lastRunAt  time.Time
	lastReport *correlation.RunReport
	lastErr    error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalysisScheduler creates a scheduler. pruner may be nil.
func NewAnalysisScheduler(runner CorrelationRunner, pruner RunPruner, cfg config.CorrelationConfig, logger *logging.StandardLogger) (*AnalysisScheduler, error) {
	interval, err := cfg.RunIntervalDuration()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.RunTimeoutDuration()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewStandardLogger("info", "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AnalysisScheduler{
		runner:   runner,
		pruner:   pruner,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		keepRuns: cfg.KeepRuns,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start runs the analysis once immediately and then on every interval tick.
func (s *AnalysisScheduler) Start() {
	log := s.logger.WithComponent("analysis_scheduler")
	log.Info("Starting analysis scheduler", "interval", s.interval.String(), "timeout", s.timeout.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop cancels any in-flight run and waits for the loop to exit.
func (s *AnalysisScheduler) Stop() {
	s.logger.WithComponent("analysis_scheduler").Info("Stopping analysis scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *AnalysisScheduler) tick() {
	_, err := s.run(s.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.skipped.Add(1)
		s.logger.WithComponent("analysis_scheduler").Warn("Skipping scheduled run, previous run still in progress")
	case err != nil && s.ctx.Err() == nil:
		s.logger.WithComponent("analysis_scheduler").Error("Scheduled correlation run failed", "error", err)
		observability.CaptureRunFailure(s.ctx, "scheduled", err)
	}
}

// RunNow executes one run bounded by the configured timeout. It returns
// ErrRunInProgress without running if another run has not finished.
func (s *AnalysisScheduler) RunNow(ctx context.Context) (*correlation.RunReport, error) {
	report, err := s.run(ctx)
	if errors.Is(err, ErrRunInProgress) {
		s.rejected.Add(1)
	}
	return report, err
}

func (s *AnalysisScheduler) run(ctx context.Context) (*correlation.RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.runner.Run(runCtx)
	s.record(report, err)
	if err != nil {
		return nil, fmt.Errorf("correlation run failed: %w", err)
	}

	s.logger.LogBusinessEvent("correlation_run_completed", map[string]interface{}{
		"run_id":          report.RunID.String(),
		"meals":           report.Meals,
		"symptoms":        report.Symptoms,
		"foods":           report.Foods,
		"evaluated_pairs": report.EvaluatedPairs,
		"skipped_pairs":   report.SkippedPairs,
		"significant":     report.Significant,
	})

	s.prune(runCtx)
	return report, nil
}

func (s *AnalysisScheduler) prune(ctx context.Context) {
	if s.pruner == nil {
		return
	}
	deleted, err := s.pruner.PruneRuns(ctx, s.keepRuns)
	if err != nil {
		s.logger.WithOperation("prune_runs").Warn("Failed to prune old correlation runs", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.WithComponent("analysis_scheduler").Info("Pruned old correlation runs", "deleted", deleted, "kept", s.keepRuns)
	}
}

func (s *AnalysisScheduler) record(report *correlation.RunReport, err error) {
	s.runs.Add(1)
	if err != nil {
		s.fails.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRunAt = time.Now()
	s.lastErr = err
	if report != nil {
		s.lastReport = report
	}
}

// Status returns the scheduler's current state.
func (s *AnalysisScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:    s.running.Load(),
		Interval:   s.interval.String(),
		LastReport: s.lastReport,
		Runs:       s.runs.Load(),
		Failures:   s.fails.Load(),
		Skipped:    s.skipped.Load(),
		Rejected:   s.rejected.Load(),
	}
	if !s.lastRunAt.IsZero() {
		at := s.lastRunAt
		status.LastRunAt = &at
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}
