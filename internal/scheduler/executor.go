package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
)

// JobHandler executes one job and reports a human-readable result string.
type JobHandler interface {
	Execute(ctx context.Context, job *models.Job) (string, error)
}

// SourceSyncer performs one source's enumerate-filter-upsert-pipeline pass.
// The only implementation lives in internal/pipeline; the interface lives
// here so the scheduler package never imports pipeline (pipeline imports
// scheduler for SyncStats, so an import back would be a cycle).
type SourceSyncer interface {
	Sync(ctx context.Context, sourceType models.SourceType, sourceID models.ULID) (SyncStats, error)
}

// SyncStats summarizes one source scan for the job's result string and for
// the admin API's per-source status.
type SyncStats struct {
	Enumerated int
	Upserted   int
	Dispatched int
	Failed     int
}

// SourceScanHandler is the single registered handler: every job this daemon
// ever runs is a source_scan, parameterized by TargetType/TargetID rather
// than by distinct job kinds.
type SourceScanHandler struct {
	syncer SourceSyncer
	logger *slog.Logger
}

// NewSourceScanHandler builds a handler around the pipeline's sync entry point.
func NewSourceScanHandler(syncer SourceSyncer) *SourceScanHandler {
	return &SourceScanHandler{syncer: syncer, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (h *SourceScanHandler) WithLogger(logger *slog.Logger) *SourceScanHandler {
	h.logger = logger
	return h
}

// Execute runs one source scan.
func (h *SourceScanHandler) Execute(ctx context.Context, job *models.Job) (string, error) {
	stats, err := h.syncer.Sync(ctx, job.TargetType, job.TargetID)
	if err != nil {
		return "", err
	}
	if stats.Failed > 0 {
		h.logger.Warn("source scan finished with per-video failures",
			slog.String("source_id", job.TargetID.String()),
			slog.Int("failed", stats.Failed))
	}
	return fmt.Sprintf("scanned %s: %d enumerated, %d upserted, %d dispatched, %d failed",
		job.TargetName, stats.Enumerated, stats.Upserted, stats.Dispatched, stats.Failed), nil
}

// Executor dispatches jobs to the handler registered for their type.
type Executor struct {
	handlers map[models.JobType]JobHandler
	jobRepo  repository.JobRepository
	logger   *slog.Logger
}

// NewExecutor creates a new job executor.
func NewExecutor(jobRepo repository.JobRepository) *Executor {
	return &Executor{
		handlers: make(map[models.JobType]JobHandler),
		jobRepo:  jobRepo,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	return e
}

// RegisterHandler registers a handler for a job type.
func (e *Executor) RegisterHandler(jobType models.JobType, handler JobHandler) {
	e.handlers[jobType] = handler
}

// Execute runs a job and persists its resulting status and history.
func (e *Executor) Execute(ctx context.Context, job *models.Job) error {
	handler, ok := e.handlers[job.Type]
	if !ok {
		return fmt.Errorf("scheduler: no handler registered for job type %q", job.Type)
	}

	e.logger.Info("executing job",
		slog.String("job_id", job.ID.String()),
		slog.String("type", string(job.Type)),
		slog.String("target", job.TargetName))

	result, err := handler.Execute(ctx, job)
	if err != nil {
		e.logger.Error("job failed",
			slog.String("job_id", job.ID.String()),
			slog.String("target", job.TargetName),
			slog.Any("error", err))

		job.MarkFailed(err)
		if job.CanRetry() {
			job.ScheduleRetry()
			e.logger.Info("job scheduled for retry",
				slog.String("job_id", job.ID.String()),
				slog.Int("attempt", job.AttemptCount))
		}
	} else {
		e.logger.Info("job completed",
			slog.String("job_id", job.ID.String()),
			slog.String("result", result))
		job.MarkCompleted(result)
	}

	if err := e.jobRepo.Update(ctx, job); err != nil {
		e.logger.Error("failed to update job status",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
		return fmt.Errorf("updating job status: %w", err)
	}

	if job.IsFinished() {
		e.createHistoryRecord(ctx, job)
	}
	return nil
}

func (e *Executor) createHistoryRecord(ctx context.Context, job *models.Job) {
	history := &models.JobHistory{
		JobID:         job.ID,
		Type:          job.Type,
		TargetID:      job.TargetID,
		TargetType:    job.TargetType,
		TargetName:    job.TargetName,
		Status:        job.Status,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		DurationMs:    job.DurationMs,
		AttemptNumber: job.AttemptCount,
		Error:         job.LastError,
		Result:        job.Result,
	}
	if err := e.jobRepo.CreateHistory(ctx, history); err != nil {
		e.logger.Error("failed to create job history",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
	}
}
