// Package config loads the TOML configuration of the playback backend.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/media"
)

//go:embed config.example.toml
var exampleConf []byte

// Duration is a time.Duration read from a TOML string such as "3s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	MPD       MPDConfig       `toml:"mpd"`
	API       APIConfig       `toml:"api"`
	CDN       CDNConfig       `toml:"cdn"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Player    PlayerConfig    `toml:"player"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig contains HTTP and Socket.IO settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	StaticDir      string `toml:"static_dir"`
	MaxConnections int    `toml:"max_connections"`
}

// MPDConfig contains the MPD output settings.
type MPDConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	Password     string   `toml:"password"`
	PollInterval Duration `toml:"poll_interval"`
}

// APIConfig contains the track API settings.
type APIConfig struct {
	BaseURL       string   `toml:"base_url"`
	Token         string   `toml:"token"`
	Categories    []string `toml:"categories"`
	Limit         int      `toml:"limit"`
	PlaysDebounce Duration `toml:"plays_debounce"`
	RateLimit     float64  `toml:"rate_limit"`
	Timeout       Duration `toml:"timeout"`
}

// CDNConfig contains media URL rewriting settings.
type CDNConfig struct {
	BaseURL string   `toml:"base_url"`
	Origins []string `toml:"origins"`
}

// TelemetryConfig contains playback event delivery settings.
type TelemetryConfig struct {
	Enabled   bool    `toml:"enabled"`
	QueueSize int     `toml:"queue_size"`
	RateLimit float64 `toml:"rate_limit"`
	Source    string  `toml:"source"`
}

// PlayerConfig contains engine and media element timings.
type PlayerConfig struct {
	LoadTimeout           Duration `toml:"load_timeout"`
	WatchdogInterval      Duration `toml:"watchdog_interval"`
	StallResumeDelay      Duration `toml:"stall_resume_delay"`
	ErrorDisplay          Duration `toml:"error_display"`
	NearEndMargin         float64  `toml:"near_end_margin"`
	RecentExclusion       int      `toml:"recent_exclusion"`
	CatalogRefreshTimeout Duration `toml:"catalog_refresh_timeout"`
	PermissionTimeout     Duration `toml:"permission_timeout"`
	RetryDelay            Duration `toml:"retry_delay"`
	ReapplyDelay          Duration `toml:"reapply_delay"`
	SilentVolume          float64  `toml:"silent_volume"`
	RecentWindow          Duration `toml:"recent_window"`
	MinLikes              int      `toml:"min_likes"`
	InteractedLimit       int      `toml:"interacted_limit"`
	BroadcastDebounce     Duration `toml:"broadcast_debounce"`
}

// StorageConfig contains on-disk locations.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
	DBPath  string `toml:"db_path"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

// Load reads path over the embedded defaults. Keys absent from the file keep
// their default values. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration from the embedded example file.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// CreateConfigFile writes the embedded example config to path.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.MPD.Port <= 0 || c.MPD.Port > 65535 {
		return fmt.Errorf("mpd.port out of range: %d", c.MPD.Port)
	}
	if c.Player.LoadTimeout.Duration <= 0 {
		return fmt.Errorf("player.load_timeout must be positive")
	}
	if c.Player.SilentVolume < 0 || c.Player.SilentVolume > 1 {
		return fmt.Errorf("player.silent_volume must be within 0-1")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LogLevel returns the configured zerolog level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Engine returns the playback engine settings.
func (c *Config) Engine() player.Config {
	p := c.Player
	return player.Config{
		LoadTimeout:           p.LoadTimeout.Duration,
		WatchdogInterval:      p.WatchdogInterval.Duration,
		StallResumeDelay:      p.StallResumeDelay.Duration,
		ErrorDisplay:          p.ErrorDisplay.Duration,
		NearEndMargin:         p.NearEndMargin,
		RecentExclusion:       p.RecentExclusion,
		CatalogRefreshTimeout: p.CatalogRefreshTimeout.Duration,
		PermissionTimeout:     p.PermissionTimeout.Duration,
		TelemetrySource:       c.Telemetry.Source,
		Selector: player.SelectorConfig{
			RecentWindow:    p.RecentWindow.Duration,
			MinLikes:        p.MinLikes,
			InteractedLimit: p.InteractedLimit,
		},
	}
}

// Media returns the media element recovery settings.
func (c *Config) Media() media.Options {
	return media.Options{
		RetryDelay:   c.Player.RetryDelay.Duration,
		ReapplyDelay: c.Player.ReapplyDelay.Duration,
		SilentVolume: c.Player.SilentVolume,
	}
}
