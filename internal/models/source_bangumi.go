package models

import "gorm.io/gorm"

// SourceBangumi is the `BangumiSeason` discriminant: one season of a
// bangumi/anime series. When DownloadAllSeasons is set the adapter also
// enumerates sibling seasons via the media-relation endpoint and unions
// their episodes into this row (subject to SelectedSeasons).
type SourceBangumi struct {
	BaseModel
	SourceCommon
	SeasonID           string      `gorm:"size:64;not null;uniqueIndex:idx_bangumi_season" json:"season_id"`
	MediaID            string      `gorm:"size:64" json:"media_id,omitempty"`
	DownloadAllSeasons bool        `gorm:"default:false" json:"download_all_seasons"`
	SelectedSeasons    StringSlice `gorm:"type:text" json:"selected_seasons,omitempty"`
	// MergeToSourceID, when set, attributes this season's episodes to the
	// target bangumi row's path; the merge target owns the watermark.
	MergeToSourceID *ULID `gorm:"type:varchar(26)" json:"merge_to_source_id,omitempty"`
}

// TableName returns the table name for SourceBangumi.
func (SourceBangumi) TableName() string { return "source_bangumi" }

// BeforeCreate validates and assigns a ULID.
func (s *SourceBangumi) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.SeasonID == "" {
		return ErrRemoteKeyRequired
	}
	return s.SourceCommon.Validate()
}

// IsMerged reports whether this season's episodes are attributed elsewhere.
func (s *SourceBangumi) IsMerged() bool {
	return s.MergeToSourceID != nil && !s.MergeToSourceID.IsZero()
}
