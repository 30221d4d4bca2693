package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// CollectionHandler handles multi-part collection (season/series) source endpoints.
type CollectionHandler struct {
	repo  repository.SourceCollectionRepository
	sched *scheduler.Scheduler
}

// NewCollectionHandler builds a CollectionHandler.
func NewCollectionHandler(repo repository.SourceCollectionRepository, sched *scheduler.Scheduler) *CollectionHandler {
	return &CollectionHandler{repo: repo, sched: sched}
}

// Register registers the collection source routes.
func (h *CollectionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCollectionSources", Method: "GET", Path: "/api/v1/sources/collection",
		Summary: "List collection sources", Tags: []string{"Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getCollectionSource", Method: "GET", Path: "/api/v1/sources/collection/{id}",
		Summary: "Get a collection source", Tags: []string{"Sources"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createCollectionSource", Method: "POST", Path: "/api/v1/sources/collection",
		Summary: "Create a collection source", Tags: []string{"Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateCollectionSource", Method: "PUT", Path: "/api/v1/sources/collection/{id}",
		Summary: "Update a collection source", Tags: []string{"Sources"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteCollectionSource", Method: "DELETE", Path: "/api/v1/sources/collection/{id}",
		Summary: "Delete a collection source", Tags: []string{"Sources"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "refreshCollectionSource", Method: "POST", Path: "/api/v1/sources/collection/{id}/refresh",
		Summary: "Queue an immediate scan of this collection source", Tags: []string{"Sources"},
	}, h.Refresh)
}

type collectionResponse struct {
	sourceCommonResponse
	CollectionID string                `json:"collection_id"`
	Kind         models.CollectionKind `json:"kind"`
	MID          string                `json:"mid,omitempty"`
}

func collectionFromModel(s *models.SourceCollection) collectionResponse {
	return collectionResponse{
		sourceCommonResponse: commonFromModel(s.ID, s.SourceCommon),
		CollectionID:         s.CollectionID,
		Kind:                 s.Kind,
		MID:                  s.MID,
	}
}

type ListCollectionSourcesInput struct{}
type ListCollectionSourcesOutput struct {
	Body struct {
		Sources []collectionResponse `json:"sources"`
	}
}

func (h *CollectionHandler) List(ctx context.Context, _ *ListCollectionSourcesInput) (*ListCollectionSourcesOutput, error) {
	sources, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, internalError("list collection sources", err)
	}
	out := &ListCollectionSourcesOutput{}
	out.Body.Sources = make([]collectionResponse, 0, len(sources))
	for _, s := range sources {
		out.Body.Sources = append(out.Body.Sources, collectionFromModel(s))
	}
	return out, nil
}

type GetCollectionSourceInput struct {
	ID string `path:"id" doc:"Collection source ID (ULID)"`
}
type GetCollectionSourceOutput struct {
	Body collectionResponse
}

func (h *CollectionHandler) Get(ctx context.Context, input *GetCollectionSourceInput) (*GetCollectionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get collection source", err)
	}
	if source == nil {
		return nil, notFoundError("collection source", input.ID)
	}
	return &GetCollectionSourceOutput{Body: collectionFromModel(source)}, nil
}

type CreateCollectionSourceInput struct {
	Body struct {
		sourceCommonRequest
		CollectionID string                `json:"collection_id"`
		Kind         models.CollectionKind `json:"kind"`
		MID          string                `json:"mid,omitempty"`
	}
}
type CreateCollectionSourceOutput struct {
	Body collectionResponse
}

func (h *CollectionHandler) Create(ctx context.Context, input *CreateCollectionSourceInput) (*CreateCollectionSourceOutput, error) {
	source := &models.SourceCollection{
		CollectionID: input.Body.CollectionID,
		Kind:         input.Body.Kind,
		MID:          input.Body.MID,
	}
	input.Body.sourceCommonRequest.applyCreate(&source.SourceCommon)

	if err := h.repo.Create(ctx, source); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			return nil, huma.Error409Conflict("a collection source with this collection_id and kind already exists")
		}
		return nil, internalError("create collection source", err)
	}
	return &CreateCollectionSourceOutput{Body: collectionFromModel(source)}, nil
}

type UpdateCollectionSourceInput struct {
	ID   string `path:"id" doc:"Collection source ID (ULID)"`
	Body sourceCommonRequest
}
type UpdateCollectionSourceOutput struct {
	Body collectionResponse
}

func (h *CollectionHandler) Update(ctx context.Context, input *UpdateCollectionSourceInput) (*UpdateCollectionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get collection source", err)
	}
	if source == nil {
		return nil, notFoundError("collection source", input.ID)
	}

	input.Body.applyUpdate(&source.SourceCommon)
	if err := h.repo.Update(ctx, source); err != nil {
		return nil, internalError("update collection source", err)
	}
	return &UpdateCollectionSourceOutput{Body: collectionFromModel(source)}, nil
}

type DeleteCollectionSourceInput struct {
	ID string `path:"id" doc:"Collection source ID (ULID)"`
}
type DeleteCollectionSourceOutput struct{}

func (h *CollectionHandler) Delete(ctx context.Context, input *DeleteCollectionSourceInput) (*DeleteCollectionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return nil, internalError("delete collection source", err)
	}
	return &DeleteCollectionSourceOutput{}, nil
}

type RefreshCollectionSourceInput struct {
	ID string `path:"id" doc:"Collection source ID (ULID)"`
}
type RefreshCollectionSourceOutput struct {
	Body struct {
		JobID string `json:"job_id"`
	}
}

func (h *CollectionHandler) Refresh(ctx context.Context, input *RefreshCollectionSourceInput) (*RefreshCollectionSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, validationError(err)
	}
	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("get collection source", err)
	}
	if source == nil {
		return nil, notFoundError("collection source", input.ID)
	}

	job, err := h.sched.ScheduleImmediate(ctx, models.SourceTypeCollection, id, source.DisplayName)
	if err != nil {
		return nil, internalError("queue collection source refresh", err)
	}
	out := &RefreshCollectionSourceOutput{}
	out.Body.JobID = job.ID.String()
	return out, nil
}
