// Package config provides configuration management for vidsyncd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort           = 8080
	defaultServerTimeout        = 30 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultMaxOpenConns         = 25
	defaultMaxIdleConns         = 10
	defaultConnMaxIdleTime      = 30 * time.Minute
	defaultHTTPTimeout          = 60 * time.Second
	defaultRateLimitCapacity    = 10
	defaultRateLimitRefillRate  = 5.0
	defaultCredentialThreshold  = 6 * time.Hour
	defaultSourceConcurrency    = 3
	defaultVideoConcurrency     = 4
	defaultPageConcurrency      = 4
	defaultDownloadRetryMax     = 3
	defaultDownloadRetryBase    = 250 * time.Millisecond
	defaultDanmakuCanvasWidth   = 1920
	defaultDanmakuCanvasHeight  = 1080
	defaultDanmakuLaneCap       = 40
	defaultWbiKeyTTL            = 12 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Credential CredentialConfig `mapstructure:"credential"`
	Download   DownloadConfig   `mapstructure:"download"`
	FFmpeg     FFmpegConfig     `mapstructure:"ffmpeg"`
	Danmaku    DanmakuConfig    `mapstructure:"danmaku"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds the control surface's HTTP server configuration. This
// is the thin seam described in component O, not an admin UI.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds the base save directory and working-temp directory.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	TempDir string `mapstructure:"temp_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// RateLimitConfig holds the global outbound token bucket parameters (4.A).
type RateLimitConfig struct {
	Capacity   int     `mapstructure:"capacity"`
	RefillRate float64 `mapstructure:"refill_rate"` // tokens/second
}

// CredentialConfig holds session-cookie lifecycle parameters (4.B/§3).
type CredentialConfig struct {
	// RefreshThreshold is how long a credential may go unused before the
	// next request opportunistically triggers a refresh.
	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
	WbiKeyTTL        time.Duration `mapstructure:"wbi_key_ttl"`
	BiliTicketSecret string        `mapstructure:"bili_ticket_secret"`
}

// DownloadConfig holds the parallelism bounds from §5's concurrency table
// and the HTTP retry policy from §4.B.
type DownloadConfig struct {
	SourceConcurrency int           `mapstructure:"source_concurrency"`
	VideoConcurrency  int           `mapstructure:"video_concurrency"`
	PageConcurrency   int           `mapstructure:"page_concurrency"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
}

// FFmpegConfig holds FFmpeg binary configuration used by the remux stage.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
}

// DanmakuConfig holds the ASS layout engine's canvas and lane parameters (4.H).
type DanmakuConfig struct {
	CanvasWidth  int `mapstructure:"canvas_width"`
	CanvasHeight int `mapstructure:"canvas_height"`
	LaneCap      int `mapstructure:"lane_cap"`
}

// SchedulerConfig holds the tick-drive loop's timing knobs (4.I).
type SchedulerConfig struct {
	MinInterval        time.Duration `mapstructure:"min_interval"`
	CatchupMissedRuns  bool          `mapstructure:"catchup_missed_runs"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with VIDSYNCD_ and use underscores for nesting.
// Example: VIDSYNCD_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/vidsyncd")
		v.AddConfigPath("$HOME/.vidsyncd")
	}

	// Environment variable settings
	v.SetEnvPrefix("VIDSYNCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "vidsyncd.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.temp_dir", "temp")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Rate limit defaults
	v.SetDefault("rate_limit.capacity", defaultRateLimitCapacity)
	v.SetDefault("rate_limit.refill_rate", defaultRateLimitRefillRate)

	// Credential defaults
	v.SetDefault("credential.refresh_threshold", defaultCredentialThreshold)
	v.SetDefault("credential.wbi_key_ttl", defaultWbiKeyTTL)
	v.SetDefault("credential.bili_ticket_secret", "")

	// Download defaults
	v.SetDefault("download.source_concurrency", defaultSourceConcurrency)
	v.SetDefault("download.video_concurrency", defaultVideoConcurrency)
	v.SetDefault("download.page_concurrency", defaultPageConcurrency)
	v.SetDefault("download.http_timeout", defaultHTTPTimeout)
	v.SetDefault("download.retry_attempts", defaultDownloadRetryMax)
	v.SetDefault("download.retry_base_delay", defaultDownloadRetryBase)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// Danmaku defaults
	v.SetDefault("danmaku.canvas_width", defaultDanmakuCanvasWidth)
	v.SetDefault("danmaku.canvas_height", defaultDanmakuCanvasHeight)
	v.SetDefault("danmaku.lane_cap", defaultDanmakuLaneCap)

	// Scheduler defaults
	v.SetDefault("scheduler.min_interval", 5*time.Minute)
	v.SetDefault("scheduler.catchup_missed_runs", true)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Rate limit validation
	if c.RateLimit.Capacity < 1 {
		return fmt.Errorf("rate_limit.capacity must be at least 1")
	}
	if c.RateLimit.RefillRate <= 0 {
		return fmt.Errorf("rate_limit.refill_rate must be positive")
	}

	// Download concurrency validation
	if c.Download.SourceConcurrency < 1 {
		return fmt.Errorf("download.source_concurrency must be at least 1")
	}
	if c.Download.VideoConcurrency < 1 {
		return fmt.Errorf("download.video_concurrency must be at least 1")
	}
	if c.Download.PageConcurrency < 1 {
		return fmt.Errorf("download.page_concurrency must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TempPath returns the shared working temp directory: TempDir under BaseDir.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}
