package models

import "gorm.io/gorm"

// Page is one part/episode of a Video. Single-part videos own exactly one
// page; multi-part videos own one or more.
type Page struct {
	BaseModel

	VideoID ULID `gorm:"type:varchar(26);not null;uniqueIndex:idx_page_video_pid,priority:1" json:"video_id"`
	PID     int  `gorm:"not null;uniqueIndex:idx_page_video_pid,priority:2" json:"pid"`
	CID     int64 `gorm:"not null" json:"cid"`

	Name       string `gorm:"size:1024;not null" json:"name"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Path       string `gorm:"size:1024;not null" json:"path"`
	ImageURL   string `gorm:"size:1024" json:"image_url,omitempty"`

	// Status is the packed page-level status word.
	Status StatusWord `gorm:"column:status_word;not null;default:0" json:"status_word"`
}

// TableName returns the table name for Page.
func (Page) TableName() string { return "page" }

// BeforeCreate validates and assigns a ULID.
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// Validate performs basic structural validation.
func (p *Page) Validate() error {
	if p.VideoID.IsZero() {
		return ErrVideoIDRequired
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// IsTerminal reports whether this page's status word is fully succeeded-or-ignored.
func (p *Page) IsTerminal() bool {
	return p.Status.IsTerminal(PageTaskCount)
}

// PageInfo is the uniform record an adapter (or the page-listing fetch in
// video task 5) emits for one part/episode before it is upserted.
type PageInfo struct {
	PID        int
	CID        int64
	Name       string
	DurationMs int64
	Width      int
	Height     int
	ImageURL   string
}
