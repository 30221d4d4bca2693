package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// WatchLaterHandler handles watch-later queue source endpoints.
type WatchLaterHandler struct {
	repo  repository.SourceWatchLaterRepository
	sched *scheduler.Scheduler
}

// NewWatchLaterHandler builds a WatchLaterHandler.
func NewWatchLaterHandler(repo repository.SourceWatchLaterRepository, sched *scheduler.Scheduler) *WatchLaterHandler {
	return &WatchLaterHandler{repo: repo, sched: sched}
}

// Register registers the watch-later source routes.
func (h *WatchLaterHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listWatchLaterSources", Method: "GET", Path: "/api/v1/sources/watch-later",
		Summary: "List watch-later queue sources", Tags: []string{"Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getWatchLaterSource", Method: "GET", Path: "/api/v1/sources/watch-later/{id}",
		Summary: "Get a watch-later queue source", Tags: []string{"Sources"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createWatchLaterSource", Method: "POST", Path: "/api/v1/sources/watch-later",
		Summary: "Create a watch-later queue source", Tags: []string{"Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateWatchLaterSource", Method: "PUT", Path: "/api/v1/sources/watch-later/{id}",
		Summary: "Update a watch-later queue source", Tags: []string{"Sources"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteWatchLaterSource", Method: "DELETE", Path: "/api/v1/sources/watch-later/{id}",
		Summary: "Delete a watch-later queue source", Tags: []string{"Sources"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "refreshWatchLaterSource", Method: "POST", Path: "/api/v1/sources/watch-later/{id}/refresh",
		Summary: "Queue an immediate scan of this watch-later source", Tags: []string{"Sources"},
	}, h.Refresh)
}

type watchLaterResponse struct {
	sourceCommonResponse
	OwnerKey string `json:"owner_key,omitempty"`
}

func watchLaterFromModel(s *models.SourceWatchLater) watchLaterResponse {
	return watchLaterResponse{
		sourceCommonResponse: commonFromModel(s.ID, s.SourceCommon),
		OwnerKey:             s.OwnerKey,
	}
}

type ListWatchLaterSourcesInput struct{}
type ListWatchLaterSourcesOutput struct {
	Body struct {
		Sources []watchLaterResponse `json:"sources"`
	}
}

func (h *WatchLaterHandler) List(ctx context.Context, _ *ListWatchLaterSourcesInput) (*ListWatchLaterSourcesOutput, error) {
	sources, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, internalError("list watch-later sources", err)
	}
	out := &ListWatchLaterSourcesOutput{}
	out.Body.Sources = make([]watchLaterResponse, 0, len(sources))
	for _, s := range sources {
		out.Body.Sources = append(out.Body.Sources, watchLaterFromModel(s))
	}
	return out, nil
}

type GetWatchLaterSourceInput struct {
	ID string `path:"id" doc:"Watch-later source ID (ULID)"`
}
type GetWatchLaterSourceOutput struct {
	Body watchLaterResponse
}

func (h *WatchLaterHandler) Get(ctx context.Context, input *GetWatchLaterSourceInput) (*GetWatchLaterSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get watch-later source", err)
	}
	if source == nil {
		return nil, notFoundError("watch-later source", input.ID)
	}
	return &GetWatchLaterSourceOutput{Body: watchLaterFromModel(source)}, nil
}

type CreateWatchLaterSourceInput struct {
	Body struct {
		sourceCommonRequest
		OwnerKey string `json:"owner_key,omitempty"`
	}
}
type CreateWatchLaterSourceOutput struct {
	Body watchLaterResponse
}

func (h *WatchLaterHandler) Create(ctx context.Context, input *CreateWatchLaterSourceInput) (*CreateWatchLaterSourceOutput, error) {
	source := &models.SourceWatchLater{OwnerKey: input.Body.OwnerKey}
	input.Body.sourceCommonRequest.applyCreate(&source.SourceCommon)

	if err := h.repo.Create(ctx, source); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			return nil, huma.Error409Conflict("a watch-later source for this owner already exists")
		}
		return nil, internalError("create watch-later source", err)
	}
	return &CreateWatchLaterSourceOutput{Body: watchLaterFromModel(source)}, nil
}

type UpdateWatchLaterSourceInput struct {
	ID   string `path:"id" doc:"Watch-later source ID (ULID)"`
	Body sourceCommonRequest
}
type UpdateWatchLaterSourceOutput struct {
	Body watchLaterResponse
}

func (h *WatchLaterHandler) Update(ctx context.Context, input *UpdateWatchLaterSourceInput) (*UpdateWatchLaterSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get watch-later source", err)
	}
	if source == nil {
		return nil, notFoundError("watch-later source", input.ID)
	}

	input.Body.applyUpdate(&source.SourceCommon)
	if err := h.repo.Update(ctx, source); err != nil {
		return nil, internalError("update watch-later source", err)
	}
	return &UpdateWatchLaterSourceOutput{Body: watchLaterFromModel(source)}, nil
}

type DeleteWatchLaterSourceInput struct {
	ID string `path:"id" doc:"Watch-later source ID (ULID)"`
}
type DeleteWatchLaterSourceOutput struct{}

func (h *WatchLaterHandler) Delete(ctx context.Context, input *DeleteWatchLaterSourceInput) (*DeleteWatchLaterSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return nil, internalError("delete watch-later source", err)
	}
	return &DeleteWatchLaterSourceOutput{}, nil
}

type RefreshWatchLaterSourceInput struct {
	ID string `path:"id" doc:"Watch-later source ID (ULID)"`
}
type RefreshWatchLaterSourceOutput struct {
	Body struct {
		JobID string `json:"job_id"`
	}
}

func (h *WatchLaterHandler) Refresh(ctx context.Context, input *RefreshWatchLaterSourceInput) (*RefreshWatchLaterSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get watch-later source", err)
	}
	if source == nil {
		return nil, notFoundError("watch-later source", input.ID)
	}

	job, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeWatchLater, id, source.DisplayName)
	if err != nil {
		return nil, internalError("queue watch-later source refresh", err)
	}
	out := &RefreshWatchLaterSourceOutput{}
	out.Body.JobID = job.ID.String()
	return out, nil
}
