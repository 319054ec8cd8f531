package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrAttemptsExhausted = errors.New("task attempts exhausted")

// Queue is the durable task store the runner leases work from.
type Queue interface {
	Claim(ctx context.Context, lease time.Duration) (*models.DispatchTask, error)
	Retry(ctx context.Context, task *models.DispatchTask, cause error, delay time.Duration) error
	Abandon(ctx context.Context, task *models.DispatchTask, cause error) error
}

// Executor runs one claimed task. It is responsible for marking the task
// done; a returned error schedules a retry.
type Executor interface {
	Execute(ctx context.Context, task *models.DispatchTask) error
}

// Waker blocks until new work may be available or the timeout passes.
type Waker interface {
	Wait(ctx context.Context, timeout time.Duration) error
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
	RetryBackoff time.Duration
}

type Runner struct {
	queue Queue
	exec  Executor
	waker Waker
	cfg   Config
	log   *zap.Logger
}

func NewRunner(queue Queue, exec Executor, waker Waker, cfg Config, log *zap.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	return &Runner{queue: queue, exec: exec, waker: waker, cfg: cfg, log: log}
}

// Run starts Concurrency claim loops and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			r.loop(ctx, slot)
			return nil
		})
	}
	r.log.Info("dispatch runner started", zap.Int("concurrency", r.cfg.Concurrency))
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		worked, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Error("dispatch runner iteration failed", zap.Int("slot", slot), zap.Error(err))
		}
		if worked {
			continue
		}
		r.idle(ctx)
	}
}

func (r *Runner) idle(ctx context.Context) {
	if r.waker != nil {
		if err := r.waker.Wait(ctx, r.cfg.PollInterval); err == nil || ctx.Err() != nil {
			return
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.cfg.PollInterval):
	}
}

// RunOnce claims and executes at most one task. It reports whether a task
// was claimed.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	task, err := r.queue.Claim(ctx, r.cfg.Lease)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	log := r.log.With(
		zap.String("task_id", task.ID.String()),
		zap.String("run_id", task.RunID.String()),
		zap.String("campaign_id", task.CampaignID.String()),
		zap.String("kind", task.Kind),
		zap.Int("batch", task.BatchIndex),
		zap.Int("attempt", task.Attempts),
	)

	// A lease that expired on the last allowed attempt lands here.
	if task.MaxAttempts > 0 && task.Attempts > task.MaxAttempts {
		log.Warn("abandoning task after lease expiry")
		metrics.IncDispatchTask(task.Kind, "abandoned")
		return true, r.queue.Abandon(ctx, task, ErrAttemptsExhausted)
	}

	started := time.Now()
	execErr := r.exec.Execute(ctx, task)
	metrics.ObserveDispatchTask(task.Kind, time.Since(started).Seconds())

	if execErr == nil {
		metrics.IncDispatchTask(task.Kind, "done")
		log.Debug("task done", zap.Duration("took", time.Since(started)))
		return true, nil
	}
	if ctx.Err() != nil {
		// Shutdown: the lease expires and another worker picks the task up.
		return true, nil
	}

	var permanent *PermanentError
	if errors.As(execErr, &permanent) || task.Attempts >= task.MaxAttempts {
		log.Error("task abandoned", zap.Error(execErr))
		metrics.IncDispatchTask(task.Kind, "abandoned")
		if err := r.queue.Abandon(ctx, task, execErr); err != nil {
			return true, fmt.Errorf("abandon task: %w", err)
		}
		return true, nil
	}

	delay := r.cfg.RetryBackoff * time.Duration(task.Attempts)
	log.Warn("task failed, retrying", zap.Duration("delay", delay), zap.Error(execErr))
	metrics.IncDispatchTask(task.Kind, "retried")
	if err := r.queue.Retry(ctx, task, execErr, delay); err != nil {
		return true, fmt.Errorf("retry task: %w", err)
	}
	return true, nil
}
