package models

import (
	"fmt"
	"path/filepath"

	"gorm.io/gorm"
)

// VideoCategory distinguishes single-part videos, multi-part videos, and
// bangumi episodes.
type VideoCategory int

const (
	CategorySinglePart VideoCategory = 1
	CategoryMultiPart  VideoCategory = 2
	CategoryBangumi    VideoCategory = 3
)

// Video is one remote item bound to exactly one source. A video that
// appears in two sources is stored twice: identity is scoped per source, so
// the unique key is (source_type, source_id, remote_key) rather than just
// remote_key.
type Video struct {
	BaseModel
	SourceRef

	RemoteKey  string        `gorm:"size:64;not null;index:idx_video_remote_key" json:"remote_key"` // bvid/avid
	Title      string        `gorm:"size:1024;not null" json:"title"`
	UpperID    string        `gorm:"size:64" json:"upper_id,omitempty"`
	UpperName  string        `gorm:"size:255" json:"upper_name,omitempty"`
	PublishAt  Time          `json:"publish_at"`
	CoverURL   string        `gorm:"size:1024" json:"cover_url,omitempty"`
	Category   VideoCategory `gorm:"not null" json:"category"`
	Path       string        `gorm:"size:1024;not null" json:"path"`
	SinglePage bool          `gorm:"default:true" json:"single_page"`
	Tags       StringSlice   `gorm:"type:text" json:"tags,omitempty"`

	// Status is the packed video-level status word.
	Status StatusWord `gorm:"column:status_word;not null;default:0" json:"status_word"`
}

// TableName returns the table name for Video.
func (Video) TableName() string { return "video" }

// BeforeCreate validates and assigns a ULID.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if err := v.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return v.Validate()
}

// Validate performs basic structural validation.
func (v *Video) Validate() error {
	if v.RemoteKey == "" {
		return ErrRemoteKeyRequired
	}
	if v.Title == "" {
		return ErrNameRequired
	}
	return nil
}

// IsTerminal reports whether this video's own status word (not its pages') is
// fully succeeded-or-ignored.
func (v *Video) IsTerminal() bool {
	return v.Status.IsTerminal(VideoTaskCount)
}

// PageDir returns the directory a page's assets live in, relative to the
// library root: the video's own directory for single-part videos, or a
// "CDn" subdirectory per part otherwise, mirroring the convention set by
// the original channel's multi-part video downloads.
func (v *Video) PageDir(page *Page) string {
	if v.SinglePage {
		return v.Path
	}
	return filepath.Join(v.Path, fmt.Sprintf("CD%d", page.PID))
}

// VideoInfo is the uniform record every source adapter emits during
// enumeration, before it has been upserted into a Video row. It carries
// enough state to compute the video's directory name before the pipeline
// begins.
type VideoInfo struct {
	RemoteKey string
	Title     string
	UpperID   string
	UpperName string
	PublishAt Time
	CoverURL  string
	Category  VideoCategory
	Tags      []string

	// Pages can carry a per-page listing the adapter already has. No adapter
	// fills it and the pipeline does not read it: page discovery always
	// calls the pagelist endpoint in the upsert-pages video task.
	Pages []PageInfo
}
