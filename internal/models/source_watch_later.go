package models

import "gorm.io/gorm"

// SourceWatchLater is the `WatchLater` discriminant. A user has at most one
// watch-later queue per credential, fetched as a single-shot full listing
// with no incremental cut-off.
type SourceWatchLater struct {
	BaseModel
	SourceCommon
	// OwnerKey disambiguates multiple credentials mirrored by one daemon;
	// empty means the daemon's single configured session.
	OwnerKey string `gorm:"size:64;uniqueIndex:idx_watch_later_owner" json:"owner_key,omitempty"`
}

// TableName returns the table name for SourceWatchLater.
func (SourceWatchLater) TableName() string { return "source_watch_later" }

// BeforeCreate validates and assigns a ULID.
func (s *SourceWatchLater) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.SourceCommon.Validate()
}
