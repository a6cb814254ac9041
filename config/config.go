package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Board        BoardConfig        `yaml:"board"`
	Database     DatabaseConfig     `yaml:"database"`
	CalendarSync CalendarSyncConfig `yaml:"calendar_sync"`
	Push         PushConfig         `yaml:"push"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool"`
	Log          LogConfig          `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// BoardConfig describes the scheduling grid.
type BoardConfig struct {
	StartHour              int            `yaml:"start_hour"`
	EndHour                int            `yaml:"end_hour"`
	SlotMinutes            int            `yaml:"slot_minutes"`
	MinimumVisibleMinutes  int            `yaml:"minimum_visible_minutes"`
	HoverFrameMillis       int            `yaml:"hover_frame_ms"`
	DefaultDurationMinutes int            `yaml:"default_duration_minutes"`
	RejectOverlap          bool           `yaml:"reject_overlap"`
	Timezone               string         `yaml:"timezone"`
	Location               *time.Location `yaml:"-"`
}

// CalendarSyncConfig holds the calendar feed poller configuration.
type CalendarSyncConfig struct {
	Enabled         bool              `yaml:"enabled"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"` // Ignored by YAML parser
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	PageSize        int               `yaml:"page_size"`
	Payload         map[string]any    `yaml:"payload"`
	HTTPProxy       string            `yaml:"http_proxy"`
	Timezone        string            `yaml:"timezone"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// LogConfig selects the log encoding and level.
type LogConfig struct {
	JSON  bool   `yaml:"json"`
	Level string `yaml:"level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 50
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 100
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	b := &cfg.Board
	if b.StartHour == 0 && b.EndHour == 0 {
		b.StartHour, b.EndHour = 7, 19
	}
	if b.SlotMinutes <= 0 {
		b.SlotMinutes = 15
	}
	if b.MinimumVisibleMinutes <= 0 {
		b.MinimumVisibleMinutes = 15
	}
	if b.HoverFrameMillis <= 0 {
		b.HoverFrameMillis = 16
	}
	if b.DefaultDurationMinutes <= 0 {
		b.DefaultDurationMinutes = 60
	}
	if b.StartHour < 0 || b.EndHour > 24 || b.EndHour <= b.StartHour {
		return errors.Newf("board: invalid hours %d-%d", b.StartHour, b.EndHour)
	}
	if 60%b.SlotMinutes != 0 {
		return errors.Newf("board: slot_minutes %d does not divide an hour", b.SlotMinutes)
	}
	loc, err := loadLocation(b.Timezone)
	if err != nil {
		return errors.Wrap(err, "board")
	}
	b.Location = loc

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "file::memory:?cache=shared"
	}

	c := &cfg.CalendarSync
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 300
	}
	c.Interval = time.Duration(c.IntervalSeconds) * time.Second
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.Timezone == "" {
		c.Timezone = b.Timezone
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", name)
	}
	return loc, nil
}

// HoverFrame returns the hover throttle interval.
func (b BoardConfig) HoverFrame() time.Duration {
	return time.Duration(b.HoverFrameMillis) * time.Millisecond
}

// DefaultDuration is used for jobs whose directory entry has no usable times.
func (b BoardConfig) DefaultDuration() time.Duration {
	return time.Duration(b.DefaultDurationMinutes) * time.Minute
}
