package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/config"
	"github.com/irfndi/gutsense-go/internal/correlation"
	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   atomic.Int32
	err     error
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeRunner) Run(ctx context.Context) (*correlation.RunReport, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &correlation.RunReport{RunID: uuid.New(), EvaluatedPairs: 3, Significant: 1}, nil
}

type fakePruner struct {
	mu    sync.Mutex
	keeps []int
	err   error
}

func (p *fakePruner) PruneRuns(ctx context.Context, keep int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keeps = append(p.keeps, keep)
	return 2, p.err
}

func testSchedulerConfig() config.CorrelationConfig {
	cfg := config.DefaultCorrelationConfig()
	cfg.RunInterval = "20ms"
	cfg.RunTimeout = "1s"
	cfg.KeepRuns = 4
	return cfg
}

func newTestScheduler(t *testing.T, runner CorrelationRunner, pruner RunPruner, cfg config.CorrelationConfig) *AnalysisScheduler {
	t.Helper()
	logger := logging.NewStandardLoggerWithWriter(io.Discard, "debug", "test")
	scheduler, err := NewAnalysisScheduler(runner, pruner, cfg, logger)
	require.NoError(t, err)
	return scheduler
}

func TestNewAnalysisScheduler_InvalidInterval(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.RunInterval = "never"

	_, err := NewAnalysisScheduler(&fakeRunner{}, nil, cfg, nil)
	assert.Error(t, err)
}

func TestAnalysisScheduler_RunNow(t *testing.T) {
	runner := &fakeRunner{}
	pruner := &fakePruner{}
	scheduler := newTestScheduler(t, runner, pruner, testSchedulerConfig())

	report, err := scheduler.RunNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.EvaluatedPairs)
	assert.Equal(t, []int{4}, pruner.keeps)

	status := scheduler.Status()
	assert.False(t, status.Running)
	assert.Equal(t, int64(1), status.Runs)
	assert.Zero(t, status.Failures)
	require.NotNil(t, status.LastRunAt)
	assert.Equal(t, report, status.LastReport)
	assert.Empty(t, status.LastError)
}

func TestAnalysisScheduler_RunNowFailure(t *testing.T) {
	runner := &fakeRunner{err: correlation.ErrDataAccess}
	pruner := &fakePruner{}
	scheduler := newTestScheduler(t, runner, pruner, testSchedulerConfig())

	report, err := scheduler.RunNow(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, correlation.ErrDataAccess)
	assert.Empty(t, pruner.keeps)

	status := scheduler.Status()
	assert.Equal(t, int64(1), status.Failures)
	assert.Contains(t, status.LastError, "data access")
	assert.Nil(t, status.LastReport)
}

func TestAnalysisScheduler_PruneFailureDoesNotFailRun(t *testing.T) {
	scheduler := newTestScheduler(t, &fakeRunner{}, &fakePruner{err: errors.New("locked")}, testSchedulerConfig())

	report, err := scheduler.RunNow(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestAnalysisScheduler_RejectsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	scheduler := newTestScheduler(t, runner, nil, testSchedulerConfig())

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.RunNow(context.Background())
		done <- err
	}()
	<-runner.started

	assert.True(t, scheduler.Status().Running)
	_, err := scheduler.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.block)
	require.NoError(t, <-done)

	status := scheduler.Status()
	assert.Equal(t, int64(1), status.Rejected)
	assert.Zero(t, status.Skipped)
	assert.Equal(t, int64(1), status.Runs)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestAnalysisScheduler_TickDuringManualRunCountsAsSkipped(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	scheduler := newTestScheduler(t, runner, nil, testSchedulerConfig())

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.RunNow(context.Background())
		done <- err
	}()
	<-runner.started

	scheduler.tick()

	close(runner.block)
	require.NoError(t, <-done)

	status := scheduler.Status()
	assert.Equal(t, int64(1), status.Skipped)
	assert.Zero(t, status.Rejected)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestAnalysisScheduler_RunTimeout(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.RunTimeout = "10ms"
	runner := &fakeRunner{block: make(chan struct{})}
	scheduler := newTestScheduler(t, runner, nil, cfg)

	_, err := scheduler.RunNow(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalysisScheduler_StartAndStop(t *testing.T) {
	runner := &fakeRunner{}
	scheduler := newTestScheduler(t, runner, nil, testSchedulerConfig())

	scheduler.Start()
	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	scheduler.Stop()

	calls := runner.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, runner.calls.Load())
}

func TestAnalysisScheduler_StopCancelsInFlightRun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	scheduler := newTestScheduler(t, runner, nil, testSchedulerConfig())

	scheduler.Start()
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, scheduler.Status().Running)
}
