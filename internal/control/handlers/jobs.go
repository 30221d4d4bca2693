package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// ControlHandler exposes the daemon-wide refresh/pause/resume operations,
// plus per-video and per-page retry resets.
type ControlHandler struct {
	sched  *scheduler.Scheduler
	runner *scheduler.Runner
	logger *slog.Logger

	favoriteRepo   repository.SourceFavoriteRepository
	collectionRepo repository.SourceCollectionRepository
	submissionRepo repository.SourceSubmissionRepository
	watchLaterRepo repository.SourceWatchLaterRepository
	bangumiRepo    repository.SourceBangumiRepository

	videoRepo repository.VideoRepository
	pageRepo  repository.PageRepository
}

// NewControlHandler builds a ControlHandler.
func NewControlHandler(
	sched *scheduler.Scheduler,
	runner *scheduler.Runner,
	favoriteRepo repository.SourceFavoriteRepository,
	collectionRepo repository.SourceCollectionRepository,
	submissionRepo repository.SourceSubmissionRepository,
	watchLaterRepo repository.SourceWatchLaterRepository,
	bangumiRepo repository.SourceBangumiRepository,
	videoRepo repository.VideoRepository,
	pageRepo repository.PageRepository,
) *ControlHandler {
	return &ControlHandler{
		sched:          sched,
		runner:         runner,
		logger:         slog.Default(),
		favoriteRepo:   favoriteRepo,
		collectionRepo: collectionRepo,
		submissionRepo: submissionRepo,
		watchLaterRepo: watchLaterRepo,
		bangumiRepo:    bangumiRepo,
		videoRepo:      videoRepo,
		pageRepo:       pageRepo,
	}
}

// Register registers the control routes.
func (h *ControlHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "refreshAll", Method: "POST", Path: "/api/v1/refresh",
		Summary: "Queue an immediate scan of every enabled source", Tags: []string{"Control"},
	}, h.RefreshAll)

	huma.Register(api, huma.Operation{
		OperationID: "pause", Method: "POST", Path: "/api/v1/pause",
		Summary: "Stop the cron scheduler and job runner without exiting the daemon", Tags: []string{"Control"},
	}, h.Pause)

	huma.Register(api, huma.Operation{
		OperationID: "resume", Method: "POST", Path: "/api/v1/resume",
		Summary: "Restart the cron scheduler and job runner after a pause", Tags: []string{"Control"},
	}, h.Resume)

	huma.Register(api, huma.Operation{
		OperationID: "resetVideo", Method: "POST", Path: "/api/v1/videos/{id}/reset",
		Summary: "Clear a video's task status word so every task is retried", Tags: []string{"Control"},
	}, h.ResetVideo)

	huma.Register(api, huma.Operation{
		OperationID: "resetPage", Method: "POST", Path: "/api/v1/pages/{id}/reset",
		Summary: "Clear a page's task status word so every task is retried", Tags: []string{"Control"},
	}, h.ResetPage)
}

type RefreshAllInput struct{}
type RefreshAllOutput struct {
	Body struct {
		Queued int `json:"queued"`
	}
}

// RefreshAll queues an immediate job for every enabled source across all
// five discriminants, mirroring what CatchupMissedRuns does for a source
// whose cron tick was missed while the daemon was down.
func (h *ControlHandler) RefreshAll(ctx context.Context, _ *RefreshAllInput) (*RefreshAllOutput, error) {
	queued := 0

	favorites, err := h.favoriteRepo.GetEnabled(ctx)
	if err != nil {
		return nil, internalError("list enabled favorite sources", err)
	}
	for _, s := range favorites {
		if _, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeFavorite, s.ID, s.DisplayName); err == nil {
			queued++
		}
	}

	collections, err := h.collectionRepo.GetEnabled(ctx)
	if err != nil {
		return nil, internalError("list enabled collection sources", err)
	}
	for _, s := range collections {
		if _, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeCollection, s.ID, s.DisplayName); err == nil {
			queued++
		}
	}

	submissions, err := h.submissionRepo.GetEnabled(ctx)
	if err != nil {
		return nil, internalError("list enabled submission sources", err)
	}
	for _, s := range submissions {
		if _, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeSubmission, s.ID, s.DisplayName); err == nil {
			queued++
		}
	}

	watchLaters, err := h.watchLaterRepo.GetEnabled(ctx)
	if err != nil {
		return nil, internalError("list enabled watch-later sources", err)
	}
	for _, s := range watchLaters {
		if _, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeWatchLater, s.ID, s.DisplayName); err == nil {
			queued++
		}
	}

	bangumis, err := h.bangumiRepo.GetEnabled(ctx)
	if err != nil {
		return nil, internalError("list enabled bangumi sources", err)
	}
	for _, s := range bangumis {
		if _, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeBangumi, s.ID, s.DisplayName); err == nil {
			queued++
		}
	}

	out := &RefreshAllOutput{}
	out.Body.Queued = queued
	return out, nil
}

type PauseInput struct{}
type PauseOutput struct {
	Body struct {
		Paused bool `json:"paused"`
	}
}

// Pause stops both the cron scheduler and the job runner. In-flight jobs
// finish on their own; no new ones are picked up or scheduled until Resume.
func (h *ControlHandler) Pause(ctx context.Context, _ *PauseInput) (*PauseOutput, error) {
	h.sched.Stop()
	h.runner.Stop()
	h.logger.Info("scheduler and runner paused via admin API")

	out := &PauseOutput{}
	out.Body.Paused = true
	return out, nil
}

type ResumeInput struct{}
type ResumeOutput struct {
	Body struct {
		Paused bool `json:"paused"`
	}
}

// Resume restarts the cron scheduler and job runner, which is safe to call
// whether or not they were actually paused.
func (h *ControlHandler) Resume(ctx context.Context, _ *ResumeInput) (*ResumeOutput, error) {
	bg := context.Background()
	if err := h.sched.Start(bg); err != nil {
		h.logger.Debug("resume: scheduler already running", slog.Any("error", err))
	}
	if err := h.runner.Start(bg); err != nil {
		h.logger.Debug("resume: runner already running", slog.Any("error", err))
	}
	h.logger.Info("scheduler and runner resumed via admin API")

	out := &ResumeOutput{}
	out.Body.Paused = false
	return out, nil
}

type ResetVideoInput struct {
	ID string `path:"id" doc:"Video ID (ULID)"`
}
type ResetVideoOutput struct{}

func (h *ControlHandler) ResetVideo(ctx context.Context, input *ResetVideoInput) (*ResetVideoOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	video, err := h.videoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get video", err)
	}
	if video == nil {
		return nil, notFoundError("video", input.ID)
	}
	if err := h.videoRepo.UpdateStatus(ctx, id, models.StatusWord(0)); err != nil {
		return nil, internalError("reset video status", err)
	}
	return &ResetVideoOutput{}, nil
}

type ResetPageInput struct {
	ID string `path:"id" doc:"Page ID (ULID)"`
}
type ResetPageOutput struct{}

func (h *ControlHandler) ResetPage(ctx context.Context, input *ResetPageInput) (*ResetPageOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	page, err := h.pageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get page", err)
	}
	if page == nil {
		return nil, notFoundError("page", input.ID)
	}
	if err := h.pageRepo.UpdateStatus(ctx, id, models.StatusWord(0)); err != nil {
		return nil, internalError("reset page status", err)
	}
	return &ResetPageOutput{}, nil
}
