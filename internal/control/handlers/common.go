// Package handlers implements the admin API's Huma operations: source CRUD
// across the five subscription discriminants, manual refresh/pause/resume of
// the scheduler and job runner, and per-video/page retry resets.
package handlers

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/pkg/format"
)

// sourceCommonResponse mirrors models.SourceCommon plus the embedding
// BaseModel fields, shared by every discriminant's response DTO.
type sourceCommonResponse struct {
	ID                  string                 `json:"id"`
	DisplayName         string                 `json:"display_name"`
	BasePath            string                 `json:"base_path"`
	Enabled             bool                   `json:"enabled"`
	Options             models.DownloadOptions `json:"options"`
	Filter              models.KeywordFilter   `json:"filter"`
	LatestRowAt         *models.Time           `json:"latest_row_at,omitempty"`
	ScanDeletedVideos   bool                   `json:"scan_deleted_videos"`
	CronSchedule        string                 `json:"cron_schedule,omitempty"`
	CronScheduleDesc    string                 `json:"cron_schedule_description,omitempty"`
	LatestRowAtRelative string                 `json:"latest_row_at_relative,omitempty"`
}

func commonFromModel(id models.ULID, c models.SourceCommon) sourceCommonResponse {
	resp := sourceCommonResponse{
		ID:                id.String(),
		DisplayName:       c.DisplayName,
		BasePath:          c.BasePath,
		Enabled:           c.Enabled,
		Options:           c.Options,
		Filter:            c.Filter,
		LatestRowAt:       c.LatestRowAt,
		ScanDeletedVideos: c.ScanDeletedVideos,
		CronSchedule:      c.CronSchedule,
	}
	if c.CronSchedule != "" {
		resp.CronScheduleDesc = format.CronDescription(c.CronSchedule)
	}
	if c.LatestRowAt != nil {
		resp.LatestRowAtRelative = format.RelativeTime(*c.LatestRowAt)
	}
	return resp
}

// sourceCommonRequest is the shared request body shape for create/update,
// embedded into each discriminant's own request type.
type sourceCommonRequest struct {
	DisplayName       string                 `json:"display_name"`
	BasePath          string                 `json:"base_path"`
	Enabled           *bool                  `json:"enabled,omitempty"`
	Options           models.DownloadOptions `json:"options,omitempty"`
	Filter            models.KeywordFilter   `json:"filter,omitempty"`
	ScanDeletedVideos bool                   `json:"scan_deleted_videos,omitempty"`
	CronSchedule      string                 `json:"cron_schedule,omitempty"`
}

func (r sourceCommonRequest) applyCreate(c *models.SourceCommon) {
	c.DisplayName = r.DisplayName
	c.BasePath = r.BasePath
	c.Enabled = true
	if r.Enabled != nil {
		c.Enabled = *r.Enabled
	}
	c.Options = r.Options
	c.Filter = r.Filter
	c.ScanDeletedVideos = r.ScanDeletedVideos
	c.CronSchedule = r.CronSchedule
}

func (r sourceCommonRequest) applyUpdate(c *models.SourceCommon) {
	if r.DisplayName != "" {
		c.DisplayName = r.DisplayName
	}
	if r.BasePath != "" {
		c.BasePath = r.BasePath
	}
	if r.Enabled != nil {
		c.Enabled = *r.Enabled
	}
	c.Options = r.Options
	c.Filter = r.Filter
	c.ScanDeletedVideos = r.ScanDeletedVideos
	c.CronSchedule = r.CronSchedule
}

// notFoundError builds the standard Huma 404 body for a missing resource.
func notFoundError(kind, id string) error {
	return huma.Error404NotFound(fmt.Sprintf("%s %s not found", kind, id))
}

// internalError wraps a persistence-layer error as a Huma 500.
func internalError(action string, err error) error {
	return huma.Error500InternalServerError(fmt.Sprintf("failed to %s", action), err)
}

// validationError maps a models.Err* sentinel (or any other create/update
// validation failure) to a Huma 400.
func validationError(err error) error {
	return huma.Error400BadRequest(err.Error())
}
