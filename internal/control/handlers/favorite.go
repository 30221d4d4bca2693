package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// FavoriteHandler handles favorite-folder source endpoints.
type FavoriteHandler struct {
	repo  repository.SourceFavoriteRepository
	sched *scheduler.Scheduler
}

// NewFavoriteHandler builds a FavoriteHandler.
func NewFavoriteHandler(repo repository.SourceFavoriteRepository, sched *scheduler.Scheduler) *FavoriteHandler {
	return &FavoriteHandler{repo: repo, sched: sched}
}

// Register registers the favorite source routes.
func (h *FavoriteHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFavoriteSources", Method: "GET", Path: "/api/v1/sources/favorite",
		Summary: "List favorite-folder sources", Tags: []string{"Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getFavoriteSource", Method: "GET", Path: "/api/v1/sources/favorite/{id}",
		Summary: "Get a favorite-folder source", Tags: []string{"Sources"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createFavoriteSource", Method: "POST", Path: "/api/v1/sources/favorite",
		Summary: "Create a favorite-folder source", Tags: []string{"Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateFavoriteSource", Method: "PUT", Path: "/api/v1/sources/favorite/{id}",
		Summary: "Update a favorite-folder source", Tags: []string{"Sources"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteFavoriteSource", Method: "DELETE", Path: "/api/v1/sources/favorite/{id}",
		Summary: "Delete a favorite-folder source", Tags: []string{"Sources"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "refreshFavoriteSource", Method: "POST", Path: "/api/v1/sources/favorite/{id}/refresh",
		Summary: "Queue an immediate scan of this favorite-folder source", Tags: []string{"Sources"},
	}, h.Refresh)
}

type favoriteResponse struct {
	sourceCommonResponse
	FID string `json:"fid"`
}

func favoriteFromModel(s *models.SourceFavorite) favoriteResponse {
	return favoriteResponse{
		sourceCommonResponse: commonFromModel(s.ID, s.SourceCommon),
		FID:                  s.FID,
	}
}

type ListFavoriteSourcesInput struct{}
type ListFavoriteSourcesOutput struct {
	Body struct {
		Sources []favoriteResponse `json:"sources"`
	}
}

func (h *FavoriteHandler) List(ctx context.Context, _ *ListFavoriteSourcesInput) (*ListFavoriteSourcesOutput, error) {
	sources, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, internalError("list favorite sources", err)
	}
	out := &ListFavoriteSourcesOutput{}
	out.Body.Sources = make([]favoriteResponse, 0, len(sources))
	for _, s := range sources {
		out.Body.Sources = append(out.Body.Sources, favoriteFromModel(s))
	}
	return out, nil
}

type GetFavoriteSourceInput struct {
	ID string `path:"id" doc:"Favorite source ID (ULID)"`
}
type GetFavoriteSourceOutput struct {
	Body favoriteResponse
}

func (h *FavoriteHandler) Get(ctx context.Context, input *GetFavoriteSourceInput) (*GetFavoriteSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get favorite source", err)
	}
	if source == nil {
		return nil, notFoundError("favorite source", input.ID)
	}
	return &GetFavoriteSourceOutput{Body: favoriteFromModel(source)}, nil
}

type CreateFavoriteSourceInput struct {
	Body struct {
		sourceCommonRequest
		FID string `json:"fid"`
	}
}
type CreateFavoriteSourceOutput struct {
	Body favoriteResponse
}

func (h *FavoriteHandler) Create(ctx context.Context, input *CreateFavoriteSourceInput) (*CreateFavoriteSourceOutput, error) {
	source := &models.SourceFavorite{FID: input.Body.FID}
	input.Body.sourceCommonRequest.applyCreate(&source.SourceCommon)

	if err := h.repo.Create(ctx, source); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			return nil, huma.Error409Conflict("a favorite source with this fid already exists")
		}
		return nil, internalError("create favorite source", err)
	}
	return &CreateFavoriteSourceOutput{Body: favoriteFromModel(source)}, nil
}

type UpdateFavoriteSourceInput struct {
	ID   string `path:"id" doc:"Favorite source ID (ULID)"`
	Body sourceCommonRequest
}
type UpdateFavoriteSourceOutput struct {
	Body favoriteResponse
}

func (h *FavoriteHandler) Update(ctx context.Context, input *UpdateFavoriteSourceInput) (*UpdateFavoriteSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get favorite source", err)
	}
	if source == nil {
		return nil, notFoundError("favorite source", input.ID)
	}

	input.Body.applyUpdate(&source.SourceCommon)
	if err := h.repo.Update(ctx, source); err != nil {
		return nil, internalError("update favorite source", err)
	}
	return &UpdateFavoriteSourceOutput{Body: favoriteFromModel(source)}, nil
}

type DeleteFavoriteSourceInput struct {
	ID string `path:"id" doc:"Favorite source ID (ULID)"`
}
type DeleteFavoriteSourceOutput struct{}

func (h *FavoriteHandler) Delete(ctx context.Context, input *DeleteFavoriteSourceInput) (*DeleteFavoriteSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return nil, internalError("delete favorite source", err)
	}
	return &DeleteFavoriteSourceOutput{}, nil
}

type RefreshFavoriteSourceInput struct {
	ID string `path:"id" doc:"Favorite source ID (ULID)"`
}
type RefreshFavoriteSourceOutput struct {
	Body struct {
		JobID string `json:"job_id"`
	}
}

func (h *FavoriteHandler) Refresh(ctx context.Context, input *RefreshFavoriteSourceInput) (*RefreshFavoriteSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get favorite source", err)
	}
	if source == nil {
		return nil, notFoundError("favorite source", input.ID)
	}

	job, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeFavorite, id, source.DisplayName)
	if err != nil {
		return nil, internalError("queue favorite source refresh", err)
	}
	out := &RefreshFavoriteSourceOutput{}
	out.Body.JobID = job.ID.String()
	return out, nil
}
