package models

import "gorm.io/gorm"

// SourceCollection is the `Collection` discriminant: a multi-part season or
// series collection, keyed on the remote collection id plus its kind.
type SourceCollection struct {
	BaseModel
	SourceCommon
	CollectionID string         `gorm:"size:64;not null;uniqueIndex:idx_collection_id_kind,priority:1" json:"collection_id"`
	Kind         CollectionKind `gorm:"size:10;not null;uniqueIndex:idx_collection_id_kind,priority:2" json:"kind"`
	MID          string         `gorm:"size:64" json:"mid,omitempty"` // owning uploader, needed by the series endpoint
}

// TableName returns the table name for SourceCollection.
func (SourceCollection) TableName() string { return "source_collection" }

// BeforeCreate validates and assigns a ULID.
func (s *SourceCollection) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.CollectionID == "" {
		return ErrRemoteKeyRequired
	}
	if s.Kind != CollectionKindSeason && s.Kind != CollectionKindSeries {
		return ErrInvalidCollectionKind
	}
	return s.SourceCommon.Validate()
}
