package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// SourceSubmission is the `Submission` discriminant: an uploader's own
// upload history, fetched via either the paged space/arc/search endpoint or
// the dynamic-feed cursor endpoint depending on UseDynamicAPI (see
// SourceCommon.Options).
type SourceSubmission struct {
	BaseModel
	SourceCommon
	MID             string      `gorm:"size:64;not null;uniqueIndex:idx_submission_mid" json:"mid"`
	SelectedVideos  StringSlice `gorm:"type:text" json:"selected_videos,omitempty"`
}

// TableName returns the table name for SourceSubmission.
func (SourceSubmission) TableName() string { return "source_submission" }

// BeforeCreate validates and assigns a ULID.
func (s *SourceSubmission) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.MID == "" {
		return ErrRemoteKeyRequired
	}
	return s.SourceCommon.Validate()
}

// HasSelection reports whether SelectedVideos materializes only a subset.
func (s *SourceSubmission) HasSelection() bool {
	return len(s.SelectedVideos) > 0
}

// StringSlice is a []string stored as a JSON array column, shared by any
// model that needs a small user-editable list (selected videos, selected
// seasons) without a join table.
type StringSlice []string

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return nil
	}
	if len(b) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(b, s)
}

// Value implements driver.Valuer.
func (s StringSlice) Value() (any, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType tells GORM to store StringSlice as text.
func (StringSlice) GormDataType() string {
	return "text"
}

// Contains reports whether key is present in the slice.
func (s StringSlice) Contains(key string) bool {
	for _, v := range s {
		if v == key {
			return true
		}
	}
	return false
}
