package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
	"github.com/vidsyncd/vidsyncd/pkg/format"
)

// SystemHandler reports daemon-wide health and scheduler/runner status.
type SystemHandler struct {
	jobRepo repository.JobRepository
	sched   *scheduler.Scheduler
	runner  *scheduler.Runner
}

// NewSystemHandler builds a SystemHandler.
func NewSystemHandler(jobRepo repository.JobRepository, sched *scheduler.Scheduler, runner *scheduler.Runner) *SystemHandler {
	return &SystemHandler{jobRepo: jobRepo, sched: sched, runner: runner}
}

// Register registers the system routes.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth", Method: "GET", Path: "/api/v1/health",
		Summary: "Liveness probe", Tags: []string{"System"},
	}, h.Health)

	huma.Register(api, huma.Operation{
		OperationID: "getStatus", Method: "GET", Path: "/api/v1/status",
		Summary: "Scheduler and job runner status", Tags: []string{"System"},
	}, h.Status)
}

type GetHealthInput struct{}
type GetHealthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func (h *SystemHandler) Health(ctx context.Context, _ *GetHealthInput) (*GetHealthOutput, error) {
	out := &GetHealthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

type GetStatusInput struct{}
type GetStatusOutput struct {
	Body struct {
		ScheduledEntries int                    `json:"scheduled_entries"`
		Runner           scheduler.RunnerStatus `json:"runner"`
		NextRuns         map[string]string      `json:"next_runs"`
		NextRunsRelative map[string]string      `json:"next_runs_relative"`
		RecentJobs       int                    `json:"recent_jobs"`
	}
}

func (h *SystemHandler) Status(ctx context.Context, _ *GetStatusInput) (*GetStatusOutput, error) {
	out := &GetStatusOutput{}
	out.Body.ScheduledEntries = h.sched.GetEntryCount()
	out.Body.Runner = h.runner.GetStatus()

	out.Body.NextRuns = make(map[string]string)
	out.Body.NextRunsRelative = make(map[string]string)
	for key, t := range h.sched.GetNextRunTimes() {
		out.Body.NextRuns[key] = t.Format("2006-01-02T15:04:05Z07:00")
		out.Body.NextRunsRelative[key] = format.RelativeTime(t)
	}

	if jobs, err := h.jobRepo.GetAll(ctx); err == nil {
		out.Body.RecentJobs = len(jobs)
	}
	return out, nil
}
