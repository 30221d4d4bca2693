package models

import (
	"encoding/json"
	"regexp"

	"gorm.io/gorm"
)

// SourceType discriminates the five subscription kinds. The discriminant is
// also used to pick the source adapter and to pick the table the row lives
// in; there is no polymorphic source table.
type SourceType string

const (
	SourceTypeFavorite    SourceType = "favorite"
	SourceTypeCollection  SourceType = "collection"
	SourceTypeSubmission  SourceType = "submission"
	SourceTypeWatchLater  SourceType = "watch_later"
	SourceTypeBangumi     SourceType = "bangumi"
)

// CollectionKind distinguishes the two collection shapes, which differ in
// endpoint and pagination (season returns a total count up front, series
// returns a per-page size).
type CollectionKind string

const (
	CollectionKindSeason CollectionKind = "season"
	CollectionKindSeries CollectionKind = "series"
)

// DownloadOptions holds the per-source download-behavior overrides shared
// by every source discriminant.
type DownloadOptions struct {
	AudioOnly         bool `json:"audio_only"`
	AudioOnlyM4AOnly  bool `json:"audio_only_m4a_only"`
	FlatLayout        bool `json:"flat_layout"`
	FetchDanmaku      bool `json:"fetch_danmaku"`
	FetchSubtitles    bool `json:"fetch_subtitles"`
	UseDynamicAPI     bool `json:"use_dynamic_api"`
	AIRenameHints     bool `json:"ai_rename_hints"`
	PreferredCodec    string `json:"preferred_codec"`
	MaxResolution     int    `json:"max_resolution"`
}

// Scan implements sql.Scanner, storing DownloadOptions as a JSON blob.
func (o *DownloadOptions) Scan(value any) error {
	if value == nil {
		*o = DownloadOptions{}
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
		*o = DownloadOptions{}
		return nil
	}
	return json.Unmarshal(b, o)
}

// Value implements driver.Valuer.
func (o DownloadOptions) Value() (any, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType tells GORM to store DownloadOptions as text.
func (DownloadOptions) GormDataType() string {
	return "text"
}

// KeywordFilter holds the optional whitelist/blacklist regex sets a source
// applies to enumerated items before they are upserted. An empty whitelist
// passes everything; a non-empty whitelist requires at least one match; any
// blacklist match rejects regardless of whitelist outcome.
type KeywordFilter struct {
	Whitelist      []string `json:"whitelist,omitempty"`
	Blacklist      []string `json:"blacklist,omitempty"`
	CaseSensitive  bool     `json:"case_sensitive"`
}

// Scan implements sql.Scanner.
func (f *KeywordFilter) Scan(value any) error {
	if value == nil {
		*f = KeywordFilter{}
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
		*f = KeywordFilter{}
		return nil
	}
	return json.Unmarshal(b, f)
}

// Value implements driver.Valuer.
func (f KeywordFilter) Value() (any, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType tells GORM to store KeywordFilter as text.
func (KeywordFilter) GormDataType() string {
	return "text"
}

// Accepts applies the whitelist-then-blacklist rule to a single title. An
// empty whitelist always passes the first stage.
func (f KeywordFilter) Accepts(title string) bool {
	if len(f.Whitelist) > 0 && !anyMatch(f.Whitelist, title, f.CaseSensitive) {
		return false
	}
	if len(f.Blacklist) > 0 && anyMatch(f.Blacklist, title, f.CaseSensitive) {
		return false
	}
	return true
}

func anyMatch(patterns []string, s string, caseSensitive bool) bool {
	if !caseSensitive {
		// regexp (?i) prefix handles this without allocating a lowercased copy.
	}
	for _, p := range patterns {
		expr := p
		if !caseSensitive {
			expr = "(?i)" + p
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// SourceCommon holds the fields shared by every discriminant's GORM model.
// Each concrete source struct embeds SourceCommon alongside BaseModel.
type SourceCommon struct {
	DisplayName       string          `gorm:"size:255;not null" json:"display_name"`
	BasePath          string          `gorm:"size:1024;not null" json:"base_path"`
	Enabled           bool            `gorm:"default:true" json:"enabled"`
	Options           DownloadOptions `gorm:"type:text" json:"options"`
	Filter            KeywordFilter   `gorm:"type:text" json:"filter"`
	LatestRowAt       *Time           `json:"latest_row_at,omitempty"`
	ScanDeletedVideos bool            `gorm:"default:false" json:"scan_deleted_videos"`
	CronSchedule      string          `gorm:"size:100" json:"cron_schedule,omitempty"`
}

// Validate checks the fields common to every source discriminant.
func (s *SourceCommon) Validate() error {
	if s.DisplayName == "" {
		return ErrNameRequired
	}
	if s.BasePath == "" {
		return ErrBasePathRequired
	}
	return nil
}

// BumpWatermark advances LatestRowAt monotonically; it never moves backward.
func (s *SourceCommon) BumpWatermark(seen Time) {
	if s.LatestRowAt == nil || seen.After(*s.LatestRowAt) {
		t := seen
		s.LatestRowAt = &t
	}
}

// GetCronSchedule returns the source's per-source cron override, satisfying
// the scheduler's cronSource interface via promoted embedding.
func (s SourceCommon) GetCronSchedule() string { return s.CronSchedule }

// GetDisplayName returns the source's human-readable name.
func (s SourceCommon) GetDisplayName() string { return s.DisplayName }

// GetLatestRowAt returns the source's upsert watermark, used for missed-run catch-up.
func (s SourceCommon) GetLatestRowAt() *Time { return s.LatestRowAt }

// GetBasePath returns the source's filesystem root, relative to the
// configured library root.
func (s SourceCommon) GetBasePath() string { return s.BasePath }

// GetFilter returns the source's keyword whitelist/blacklist.
func (s SourceCommon) GetFilter() KeywordFilter { return s.Filter }

// GetOptions returns the source's download-behavior overrides.
func (s SourceCommon) GetOptions() DownloadOptions { return s.Options }

// GetScanDeletedVideos reports whether this source reconciles remote
// deletions by soft-deleting local rows no longer present in a full scan.
func (s SourceCommon) GetScanDeletedVideos() bool { return s.ScanDeletedVideos }

// SourceRef identifies a source row uniquely across discriminants: the type
// tag plus the row's own ULID. Video and Page rows store this pair instead
// of a foreign key, since the referenced row can live in any one of five tables.
type SourceRef struct {
	Type SourceType `gorm:"size:20;not null;index:idx_source_ref,priority:1" json:"source_type"`
	ID   ULID       `gorm:"type:varchar(26);not null;index:idx_source_ref,priority:2" json:"source_id"`
}

// SourceFavorite is the `Favorite` discriminant: a user's saved-favorites folder.
type SourceFavorite struct {
	BaseModel
	SourceCommon
	FID string `gorm:"size:64;not null;uniqueIndex:idx_favorite_fid" json:"fid"`
}

// TableName returns the table name for SourceFavorite.
func (SourceFavorite) TableName() string { return "source_favorite" }

// BeforeCreate validates and assigns a ULID.
func (s *SourceFavorite) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.FID == "" {
		return ErrRemoteKeyRequired
	}
	return s.SourceCommon.Validate()
}
