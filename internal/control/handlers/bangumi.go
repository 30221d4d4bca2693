package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// BangumiHandler handles bangumi-season source endpoints.
type BangumiHandler struct {
	repo  repository.SourceBangumiRepository
	sched *scheduler.Scheduler
}

// NewBangumiHandler builds a BangumiHandler.
func NewBangumiHandler(repo repository.SourceBangumiRepository, sched *scheduler.Scheduler) *BangumiHandler {
	return &BangumiHandler{repo: repo, sched: sched}
}

// Register registers the bangumi source routes.
func (h *BangumiHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listBangumiSources", Method: "GET", Path: "/api/v1/sources/bangumi",
		Summary: "List bangumi-season sources", Tags: []string{"Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getBangumiSource", Method: "GET", Path: "/api/v1/sources/bangumi/{id}",
		Summary: "Get a bangumi-season source", Tags: []string{"Sources"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createBangumiSource", Method: "POST", Path: "/api/v1/sources/bangumi",
		Summary: "Create a bangumi-season source", Tags: []string{"Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateBangumiSource", Method: "PUT", Path: "/api/v1/sources/bangumi/{id}",
		Summary: "Update a bangumi-season source", Tags: []string{"Sources"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteBangumiSource", Method: "DELETE", Path: "/api/v1/sources/bangumi/{id}",
		Summary: "Delete a bangumi-season source", Tags: []string{"Sources"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "refreshBangumiSource", Method: "POST", Path: "/api/v1/sources/bangumi/{id}/refresh",
		Summary: "Queue an immediate scan of this bangumi source", Tags: []string{"Sources"},
	}, h.Refresh)
}

type bangumiResponse struct {
	sourceCommonResponse
	SeasonID           string   `json:"season_id"`
	MediaID            string   `json:"media_id,omitempty"`
	DownloadAllSeasons bool     `json:"download_all_seasons"`
	SelectedSeasons    []string `json:"selected_seasons,omitempty"`
	MergeToSourceID    string   `json:"merge_to_source_id,omitempty"`
}

func bangumiFromModel(s *models.SourceBangumi) bangumiResponse {
	resp := bangumiResponse{
		sourceCommonResponse: commonFromModel(s.ID, s.SourceCommon),
		SeasonID:             s.SeasonID,
		MediaID:              s.MediaID,
		DownloadAllSeasons:   s.DownloadAllSeasons,
		SelectedSeasons:      []string(s.SelectedSeasons),
	}
	if s.MergeToSourceID != nil {
		resp.MergeToSourceID = s.MergeToSourceID.String()
	}
	return resp
}

type ListBangumiSourcesInput struct{}
type ListBangumiSourcesOutput struct {
	Body struct {
		Sources []bangumiResponse `json:"sources"`
	}
}

func (h *BangumiHandler) List(ctx context.Context, _ *ListBangumiSourcesInput) (*ListBangumiSourcesOutput, error) {
	sources, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, internalError("list bangumi sources", err)
	}
	out := &ListBangumiSourcesOutput{}
	out.Body.Sources = make([]bangumiResponse, 0, len(sources))
	for _, s := range sources {
		out.Body.Sources = append(out.Body.Sources, bangumiFromModel(s))
	}
	return out, nil
}

type GetBangumiSourceInput struct {
	ID string `path:"id" doc:"Bangumi source ID (ULID)"`
}
type GetBangumiSourceOutput struct {
	Body bangumiResponse
}

func (h *BangumiHandler) Get(ctx context.Context, input *GetBangumiSourceInput) (*GetBangumiSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get bangumi source", err)
	}
	if source == nil {
		return nil, notFoundError("bangumi source", input.ID)
	}
	return &GetBangumiSourceOutput{Body: bangumiFromModel(source)}, nil
}

type CreateBangumiSourceInput struct {
	Body struct {
		sourceCommonRequest
		SeasonID           string   `json:"season_id"`
		MediaID            string   `json:"media_id,omitempty"`
		DownloadAllSeasons bool     `json:"download_all_seasons,omitempty"`
		SelectedSeasons    []string `json:"selected_seasons,omitempty"`
		MergeToSourceID    string   `json:"merge_to_source_id,omitempty"`
	}
}
type CreateBangumiSourceOutput struct {
	Body bangumiResponse
}

func (h *BangumiHandler) Create(ctx context.Context, input *CreateBangumiSourceInput) (*CreateBangumiSourceOutput, error) {
	source := &models.SourceBangumi{
		SeasonID:           input.Body.SeasonID,
		MediaID:            input.Body.MediaID,
		DownloadAllSeasons: input.Body.DownloadAllSeasons,
		SelectedSeasons:    models.StringSlice(input.Body.SelectedSeasons),
	}
	if input.Body.MergeToSourceID != "" {
		mergeID, err := models.ParseULID(input.Body.MergeToSourceID)
		if err != nil {
			return nil, validationError(err)
		}
		source.MergeToSourceID = &mergeID
	}
	input.Body.sourceCommonRequest.applyCreate(&source.SourceCommon)

	if err := h.repo.Create(ctx, source); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			return nil, huma.Error409Conflict("a bangumi source with this season_id already exists")
		}
		return nil, internalError("create bangumi source", err)
	}
	return &CreateBangumiSourceOutput{Body: bangumiFromModel(source)}, nil
}

type UpdateBangumiSourceInput struct {
	ID   string `path:"id" doc:"Bangumi source ID (ULID)"`
	Body struct {
		sourceCommonRequest
		DownloadAllSeasons *bool    `json:"download_all_seasons,omitempty"`
		SelectedSeasons    []string `json:"selected_seasons,omitempty"`
	}
}
type UpdateBangumiSourceOutput struct {
	Body bangumiResponse
}

func (h *BangumiHandler) Update(ctx context.Context, input *UpdateBangumiSourceInput) (*UpdateBangumiSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get bangumi source", err)
	}
	if source == nil {
		return nil, notFoundError("bangumi source", input.ID)
	}

	input.Body.sourceCommonRequest.applyUpdate(&source.SourceCommon)
	if input.Body.DownloadAllSeasons != nil {
		source.DownloadAllSeasons = *input.Body.DownloadAllSeasons
	}
	if input.Body.SelectedSeasons != nil {
		source.SelectedSeasons = models.StringSlice(input.Body.SelectedSeasons)
	}
	if err := h.repo.Update(ctx, source); err != nil {
		return nil, internalError("update bangumi source", err)
	}
	return &UpdateBangumiSourceOutput{Body: bangumiFromModel(source)}, nil
}

type DeleteBangumiSourceInput struct {
	ID string `path:"id" doc:"Bangumi source ID (ULID)"`
}
type DeleteBangumiSourceOutput struct{}

func (h *BangumiHandler) Delete(ctx context.Context, input *DeleteBangumiSourceInput) (*DeleteBangumiSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return nil, internalError("delete bangumi source", err)
	}
	return &DeleteBangumiSourceOutput{}, nil
}

type RefreshBangumiSourceInput struct {
	ID string `path:"id" doc:"Bangumi source ID (ULID)"`
}
type RefreshBangumiSourceOutput struct {
	Body struct {
		JobID string `json:"job_id"`
	}
}

func (h *BangumiHandler) Refresh(ctx context.Context, input *RefreshBangumiSourceInput) (*RefreshBangumiSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get bangumi source", err)
	}
	if source == nil {
		return nil, notFoundError("bangumi source", input.ID)
	}

	job, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeBangumi, id, source.DisplayName)
	if err != nil {
		return nil, internalError("queue bangumi source refresh", err)
	}
	out := &RefreshBangumiSourceOutput{}
	out.Body.JobID = job.ID.String()
	return out, nil
}
