package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidsyncd/vidsyncd/internal/repository"
)

// Runner manages a pool of workers that poll the job table and execute
// whatever source_scan jobs the Scheduler's cron ticks have queued.
type Runner struct {
	mu sync.RWMutex

	jobRepo  repository.JobRepository
	executor *Executor
	logger   *slog.Logger

	workerCount   int
	pollInterval  time.Duration
	lockTimeout   time.Duration
	workerID      string
	jobTimeout    time.Duration
	cleanupAge    time.Duration
	cleanupEnable bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	WorkerCount   int
	PollInterval  time.Duration
	LockTimeout   time.Duration
	WorkerID      string
	JobTimeout    time.Duration
	CleanupAge    time.Duration
	CleanupEnable bool
}

// DefaultRunnerConfig returns the default runner configuration. WorkerCount
// of 2 lets a stuck source_scan job (one is already running) not starve an
// unrelated source's scheduled tick.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:   2,
		PollInterval:  5 * time.Second,
		LockTimeout:   30 * time.Minute,
		WorkerID:      fmt.Sprintf("worker-%d", time.Now().UnixNano()),
		JobTimeout:    2 * time.Hour,
		CleanupAge:    7 * 24 * time.Hour,
		CleanupEnable: true,
	}
}

// NewRunner creates a new job runner.
func NewRunner(jobRepo repository.JobRepository, executor *Executor) *Runner {
	cfg := DefaultRunnerConfig()
	return &Runner{
		jobRepo:       jobRepo,
		executor:      executor,
		logger:        slog.Default(),
		workerCount:   cfg.WorkerCount,
		pollInterval:  cfg.PollInterval,
		lockTimeout:   cfg.LockTimeout,
		workerID:      cfg.WorkerID,
		jobTimeout:    cfg.JobTimeout,
		cleanupAge:    cfg.CleanupAge,
		cleanupEnable: cfg.CleanupEnable,
	}
}

// WithLogger sets a custom logger.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// WithConfig applies non-zero fields of config, leaving defaults otherwise.
func (r *Runner) WithConfig(cfg RunnerConfig) *Runner {
	if cfg.WorkerCount > 0 {
		r.workerCount = cfg.WorkerCount
	}
	if cfg.PollInterval > 0 {
		r.pollInterval = cfg.PollInterval
	}
	if cfg.LockTimeout > 0 {
		r.lockTimeout = cfg.LockTimeout
	}
	if cfg.WorkerID != "" {
		r.workerID = cfg.WorkerID
	}
	if cfg.JobTimeout > 0 {
		r.jobTimeout = cfg.JobTimeout
	}
	if cfg.CleanupAge > 0 {
		r.cleanupAge = cfg.CleanupAge
	}
	r.cleanupEnable = cfg.CleanupEnable
	return r
}

// Start launches the configured number of worker goroutines plus the
// housekeeping routines (stale-job recovery, old-job cleanup).
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return fmt.Errorf("scheduler: runner already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.workerCount; i++ {
		workerID := fmt.Sprintf("%s-%d", r.workerID, i)
		r.wg.Add(1)
		go r.worker(workerID)
	}

	if r.cleanupEnable {
		r.wg.Add(1)
		go r.cleanupLoop()
	}

	r.wg.Add(1)
	go r.staleRecoveryLoop()

	r.logger.Info("job runner started",
		slog.Int("workers", r.workerCount),
		slog.Duration("poll_interval", r.pollInterval))
	return nil
}

// Stop cancels the worker context and waits for every goroutine to exit.
// An in-flight job's context is derived from the worker context, so it is
// cancelled too; Stop returns once that job has observed the cancellation
// and returned.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	r.ctx = nil
	r.cancel = nil
	r.mu.Unlock()

	r.logger.Info("job runner stopped")
}

func (r *Runner) worker(workerID string) {
	defer r.wg.Done()
	r.logger.Debug("worker started", slog.String("worker_id", workerID))

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			if err := r.processOne(workerID); err != nil {
				if err != errNoJobs {
					r.logger.Error("error processing job",
						slog.String("worker_id", workerID),
						slog.Any("error", err))
				}
				select {
				case <-r.ctx.Done():
					return
				case <-time.After(r.pollInterval):
				}
			}
		}
	}
}

var errNoJobs = fmt.Errorf("scheduler: no jobs available")

func (r *Runner) processOne(workerID string) error {
	job, err := r.jobRepo.AcquireJob(r.ctx, workerID)
	if err != nil {
		return fmt.Errorf("acquiring job: %w", err)
	}
	if job == nil {
		return errNoJobs
	}

	r.logger.Debug("acquired job",
		slog.String("worker_id", workerID),
		slog.String("job_id", job.ID.String()))

	jobCtx, cancel := context.WithTimeout(r.ctx, r.jobTimeout)
	defer cancel()

	if err := r.executor.Execute(jobCtx, job); err != nil {
		return fmt.Errorf("executing job: %w", err)
	}
	return nil
}

func (r *Runner) cleanupLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.performCleanup()
		}
	}
}

func (r *Runner) performCleanup() {
	cutoff := time.Now().Add(-r.cleanupAge)

	if n, err := r.jobRepo.DeleteCompleted(r.ctx, cutoff); err != nil {
		r.logger.Error("cleanup: deleting old jobs", slog.Any("error", err))
	} else if n > 0 {
		r.logger.Info("cleaned up old jobs", slog.Int64("deleted", n))
	}

	if n, err := r.jobRepo.DeleteHistory(r.ctx, cutoff); err != nil {
		r.logger.Error("cleanup: deleting old history", slog.Any("error", err))
	} else if n > 0 {
		r.logger.Info("cleaned up old job history", slog.Int64("deleted", n))
	}
}

func (r *Runner) staleRecoveryLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.recoverStale()
		}
	}
}

// recoverStale reclaims jobs whose lock outlived lockTimeout — the worker
// that held them is presumed dead (crash, OOM-kill) rather than merely slow,
// since jobTimeout already bounds legitimate long-running scans.
func (r *Runner) recoverStale() {
	running, err := r.jobRepo.GetRunning(r.ctx)
	if err != nil {
		r.logger.Error("stale recovery: listing running jobs", slog.Any("error", err))
		return
	}

	cutoff := time.Now().Add(-r.lockTimeout)
	for _, job := range running {
		if job.LockedAt == nil || !job.LockedAt.Before(cutoff) {
			continue
		}
		r.logger.Warn("recovering stale job",
			slog.String("job_id", job.ID.String()),
			slog.String("locked_by", job.LockedBy))

		job.MarkFailed(fmt.Errorf("scheduler: job stale, locked since %s", job.LockedAt.Format(time.RFC3339)))
		if job.CanRetry() {
			job.ScheduleRetry()
		}
		if err := r.jobRepo.Update(r.ctx, job); err != nil {
			r.logger.Error("stale recovery: updating job", slog.String("job_id", job.ID.String()), slog.Any("error", err))
		}
	}
}

// RunnerStatus reports the runner's live state for the admin API.
type RunnerStatus struct {
	Running      bool          `json:"running"`
	WorkerCount  int           `json:"worker_count"`
	PendingJobs  int64         `json:"pending_jobs"`
	RunningJobs  int64         `json:"running_jobs"`
	PollInterval time.Duration `json:"poll_interval"`
}

// GetStatus returns the current runner status.
func (r *Runner) GetStatus() RunnerStatus {
	r.mu.RLock()
	running := r.ctx != nil && r.ctx.Err() == nil
	r.mu.RUnlock()

	var pending, inFlight int64
	if running {
		if jobs, err := r.jobRepo.GetPending(r.ctx); err == nil {
			pending = int64(len(jobs))
		}
		if jobs, err := r.jobRepo.GetRunning(r.ctx); err == nil {
			inFlight = int64(len(jobs))
		}
	}

	return RunnerStatus{
		Running:      running,
		WorkerCount:  r.workerCount,
		PendingJobs:  pending,
		RunningJobs:  inFlight,
		PollInterval: r.pollInterval,
	}
}
