package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// SubmissionHandler handles uploader-submission source endpoints.
type SubmissionHandler struct {
	repo  repository.SourceSubmissionRepository
	sched *scheduler.Scheduler
}

// NewSubmissionHandler builds a SubmissionHandler.
func NewSubmissionHandler(repo repository.SourceSubmissionRepository, sched *scheduler.Scheduler) *SubmissionHandler {
	return &SubmissionHandler{repo: repo, sched: sched}
}

// Register registers the submission source routes.
func (h *SubmissionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSubmissionSources", Method: "GET", Path: "/api/v1/sources/submission",
		Summary: "List uploader-submission sources", Tags: []string{"Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getSubmissionSource", Method: "GET", Path: "/api/v1/sources/submission/{id}",
		Summary: "Get an uploader-submission source", Tags: []string{"Sources"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createSubmissionSource", Method: "POST", Path: "/api/v1/sources/submission",
		Summary: "Create an uploader-submission source", Tags: []string{"Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateSubmissionSource", Method: "PUT", Path: "/api/v1/sources/submission/{id}",
		Summary: "Update an uploader-submission source", Tags: []string{"Sources"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteSubmissionSource", Method: "DELETE", Path: "/api/v1/sources/submission/{id}",
		Summary: "Delete an uploader-submission source", Tags: []string{"Sources"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "refreshSubmissionSource", Method: "POST", Path: "/api/v1/sources/submission/{id}/refresh",
		Summary: "Queue an immediate scan of this uploader-submission source", Tags: []string{"Sources"},
	}, h.Refresh)
}

type submissionResponse struct {
	sourceCommonResponse
	MID            string   `json:"mid"`
	SelectedVideos []string `json:"selected_videos,omitempty"`
}

func submissionFromModel(s *models.SourceSubmission) submissionResponse {
	return submissionResponse{
		sourceCommonResponse: commonFromModel(s.ID, s.SourceCommon),
		MID:                  s.MID,
		SelectedVideos:       []string(s.SelectedVideos),
	}
}

type ListSubmissionSourcesInput struct{}
type ListSubmissionSourcesOutput struct {
	Body struct {
		Sources []submissionResponse `json:"sources"`
	}
}

func (h *SubmissionHandler) List(ctx context.Context, _ *ListSubmissionSourcesInput) (*ListSubmissionSourcesOutput, error) {
	sources, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, internalError("list submission sources", err)
	}
	out := &ListSubmissionSourcesOutput{}
	out.Body.Sources = make([]submissionResponse, 0, len(sources))
	for _, s := range sources {
		out.Body.Sources = append(out.Body.Sources, submissionFromModel(s))
	}
	return out, nil
}

type GetSubmissionSourceInput struct {
	ID string `path:"id" doc:"Submission source ID (ULID)"`
}
type GetSubmissionSourceOutput struct {
	Body submissionResponse
}

func (h *SubmissionHandler) Get(ctx context.Context, input *GetSubmissionSourceInput) (*GetSubmissionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get submission source", err)
	}
	if source == nil {
		return nil, notFoundError("submission source", input.ID)
	}
	return &GetSubmissionSourceOutput{Body: submissionFromModel(source)}, nil
}

type CreateSubmissionSourceInput struct {
	Body struct {
		sourceCommonRequest
		MID            string   `json:"mid"`
		SelectedVideos []string `json:"selected_videos,omitempty"`
	}
}
type CreateSubmissionSourceOutput struct {
	Body submissionResponse
}

func (h *SubmissionHandler) Create(ctx context.Context, input *CreateSubmissionSourceInput) (*CreateSubmissionSourceOutput, error) {
	source := &models.SourceSubmission{
		MID:            input.Body.MID,
		SelectedVideos: models.StringSlice(input.Body.SelectedVideos),
	}
	input.Body.sourceCommonRequest.applyCreate(&source.SourceCommon)

	if err := h.repo.Create(ctx, source); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			return nil, huma.Error409Conflict("a submission source with this mid already exists")
		}
		return nil, internalError("create submission source", err)
	}
	return &CreateSubmissionSourceOutput{Body: submissionFromModel(source)}, nil
}

type UpdateSubmissionSourceInput struct {
	ID   string `path:"id" doc:"Submission source ID (ULID)"`
	Body struct {
		sourceCommonRequest
		SelectedVideos []string `json:"selected_videos,omitempty"`
	}
}
type UpdateSubmissionSourceOutput struct {
	Body submissionResponse
}

func (h *SubmissionHandler) Update(ctx context.Context, input *UpdateSubmissionSourceInput) (*UpdateSubmissionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get submission source", err)
	}
	if source == nil {
		return nil, notFoundError("submission source", input.ID)
	}

	input.Body.sourceCommonRequest.applyUpdate(&source.SourceCommon)
	if input.Body.SelectedVideos != nil {
		source.SelectedVideos = models.StringSlice(input.Body.SelectedVideos)
	}
	if err := h.repo.Update(ctx, source); err != nil {
		return nil, internalError("update submission source", err)
	}
	return &UpdateSubmissionSourceOutput{Body: submissionFromModel(source)}, nil
}

type DeleteSubmissionSourceInput struct {
	ID string `path:"id" doc:"Submission source ID (ULID)"`
}
type DeleteSubmissionSourceOutput struct{}

func (h *SubmissionHandler) Delete(ctx context.Context, input *DeleteSubmissionSourceInput) (*DeleteSubmissionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return nil, internalError("delete submission source", err)
	}
	return &DeleteSubmissionSourceOutput{}, nil
}

type RefreshSubmissionSourceInput struct {
	ID string `path:"id" doc:"Submission source ID (ULID)"`
}
type RefreshSubmissionSourceOutput struct {
	Body struct {
		JobID string `json:"job_id"`
	}
}

func (h *SubmissionHandler) Refresh(ctx context.Context, input *RefreshSubmissionSourceInput) (*RefreshSubmissionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get submission source", err)
	}
	if source == nil {
		return nil, notFoundError("submission source", input.ID)
	}

	job, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeSubmission, id, source.DisplayName)
	if err != nil {
		return nil, internalError("queue submission source refresh", err)
	}
	out := &RefreshSubmissionSourceOutput{}
	out.Body.JobID = job.ID.String()
	return out, nil
}
