package models

import (
	"time"

	"gorm.io/gorm"
)

// CredentialState is the lifecycle of a stored session credential:
// valid → needs-refresh → refreshing → valid | invalid.
type CredentialState string

const (
	CredentialValid       CredentialState = "valid"
	CredentialNeedsRefresh CredentialState = "needs_refresh"
	CredentialRefreshing  CredentialState = "refreshing"
	CredentialInvalid     CredentialState = "invalid"
)

// Credential is the persisted session tuple used to sign and authenticate
// outbound requests. There is normally exactly one row; it is kept as a
// table (not a config_kv entry) so it can carry its own lifecycle timestamps.
type Credential struct {
	BaseModel

	SESSDATA    string `gorm:"size:512" json:"-"`
	BiliJCT     string `gorm:"size:128;column:bili_jct" json:"-"`
	Buvid3      string `gorm:"size:128" json:"-"`
	DedeUserID  string `gorm:"size:64" json:"dedeuserid,omitempty"`
	ACTimeValue string `gorm:"size:512;column:ac_time_value" json:"-"`

	State          CredentialState `gorm:"size:20;not null;default:'valid'" json:"state"`
	LastRefreshAt  *Time           `json:"last_refresh_at,omitempty"`
	LastRefreshErr string          `gorm:"size:2048" json:"last_refresh_err,omitempty"`
}

// TableName returns the table name for Credential.
func (Credential) TableName() string { return "credential" }

// BeforeCreate assigns a ULID.
func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	return c.BaseModel.BeforeCreate(tx)
}

// NeedsRefresh reports whether the credential should be refreshed on next use.
func (c *Credential) NeedsRefresh() bool {
	return c.State == CredentialNeedsRefresh || c.State == CredentialInvalid
}

// IsUsable reports whether the credential can still be attached to a
// request even if a refresh is pending or failed — a stale credential
// remains usable until explicitly invalidated.
func (c *Credential) IsUsable() bool {
	return c.State != CredentialInvalid
}

// MarkNeedsRefresh transitions the credential out of `valid` opportunistically.
func (c *Credential) MarkNeedsRefresh() {
	if c.State == CredentialValid {
		c.State = CredentialNeedsRefresh
	}
}

// MarkRefreshing transitions the credential into the in-flight refresh state.
func (c *Credential) MarkRefreshing() {
	c.State = CredentialRefreshing
}

// MarkRefreshed records a successful refresh.
func (c *Credential) MarkRefreshed(sessdata, biliJCT, buvid3, acTimeValue string) {
	c.SESSDATA = sessdata
	c.BiliJCT = biliJCT
	c.Buvid3 = buvid3
	c.ACTimeValue = acTimeValue
	c.State = CredentialValid
	now := Now()
	c.LastRefreshAt = &now
	c.LastRefreshErr = ""
}

// MarkRefreshFailed records a failed refresh without discarding the prior
// tuple, which remains usable until explicit invalidation.
func (c *Credential) MarkRefreshFailed(err error) {
	if err != nil {
		c.LastRefreshErr = err.Error()
	}
	c.State = CredentialValid // prior tuple still usable
}

// Invalidate marks the credential unusable, forcing operator intervention.
func (c *Credential) Invalidate() {
	c.State = CredentialInvalid
}

// WbiKeys is the `(img_key, sub_key, fetched_at)` triple used to derive the
// daily-rotating mixin key for wbi-signed requests. Cached in memory with a
// TTL of at most 12h; see internal/platform for the signing algorithm.
type WbiKeys struct {
	ImgKey    string
	SubKey    string
	FetchedAt Time
}

// Expired reports whether the keys are older than the given TTL.
func (k WbiKeys) Expired(ttl time.Duration) bool {
	if k.ImgKey == "" || k.SubKey == "" {
		return true
	}
	return Now().Sub(k.FetchedAt) > ttl
}

// ConfigKV is a free-form persisted setting row, used for daemon-level state
// that does not warrant its own table (e.g. the pause/running latch).
type ConfigKV struct {
	Key       string `gorm:"primarykey;size:128" json:"key"`
	Value     string `gorm:"size:4096" json:"value"`
	UpdatedAt Time   `json:"updated_at"`
}

// TableName returns the table name for ConfigKV.
func (ConfigKV) TableName() string { return "config_kv" }
