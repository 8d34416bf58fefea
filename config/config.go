package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Notify     NotifyConfig     `yaml:"notify"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`

	defaulted []Defaulted
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	Timezone        string  `yaml:"timezone"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// SweepConfig controls the periodic maintenance sweep.
type SweepConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// NotifyConfig holds the due-soon notice delivery settings.
type NotifyConfig struct {
	ReminderWindowHours int           `yaml:"reminder_window_hours"`
	ReminderWindow      time.Duration `yaml:"-"`
	BodyTemplate        string        `yaml:"body_template"`
	SMTP                SMTPConfig    `yaml:"smtp"`
	Webhook             WebhookConfig `yaml:"webhook"`
	Push                PushConfig    `yaml:"push"`
}

// SMTPConfig holds the mail relay settings. An empty host disables mail.
type SMTPConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	From             string `yaml:"from"`
	DefaultRecipient string `yaml:"default_recipient"`
}

// WebhookConfig holds the webhook endpoint. An empty URL disables it.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// AuthConfig holds the JWT settings. An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTLHours int           `yaml:"token_ttl_hours"`
	TokenTTL      time.Duration `yaml:"-"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
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
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Defaulted is a setting that was missing or invalid and got filled in.
type Defaulted struct {
	Key   string
	Value any
}

// ApplyDefaults fills in unset values and records each one it filled, so
// they can be logged once a logger exists.
func (cfg *Config) ApplyDefaults() []Defaulted {
	var filled []Defaulted
	set := func(cond bool, key string, value any, apply func()) {
		if cond {
			apply()
			filled = append(filled, Defaulted{Key: key, Value: value})
		}
	}

	set(cfg.Server.Port <= 0, "server.port", 8080, func() { cfg.Server.Port = 8080 })
	set(cfg.Server.RateLimitPerSec <= 0, "server.rate_limit_per_sec", 10.0, func() { cfg.Server.RateLimitPerSec = 10 })
	set(cfg.Server.RateLimitBurst <= 0, "server.rate_limit_burst", 5, func() { cfg.Server.RateLimitBurst = 5 })
	set(cfg.Server.CacheTTLSeconds <= 0, "server.cache_ttl_seconds", 60, func() { cfg.Server.CacheTTLSeconds = 60 })
	set(cfg.Server.Timezone == "", "server.timezone", "UTC", func() { cfg.Server.Timezone = "UTC" })

	set(cfg.Database.Driver == "", "database.driver", "sqlite", func() { cfg.Database.Driver = "sqlite" })
	set(cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite", "database.dsn", "greenhouse.db", func() { cfg.Database.DSN = "greenhouse.db" })

	set(cfg.Sweep.IntervalSeconds <= 0, "sweep.interval_seconds", 3600, func() { cfg.Sweep.IntervalSeconds = 3600 })
	cfg.Sweep.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second

	set(cfg.Notify.ReminderWindowHours <= 0, "notify.reminder_window_hours", 24, func() { cfg.Notify.ReminderWindowHours = 24 })
	cfg.Notify.ReminderWindow = time.Duration(cfg.Notify.ReminderWindowHours) * time.Hour
	set(cfg.Notify.SMTP.Port <= 0, "notify.smtp.port", 587, func() { cfg.Notify.SMTP.Port = 587 })
	set(cfg.Notify.Push.TTL <= 0, "notify.push.ttl", 3600, func() { cfg.Notify.Push.TTL = 3600 })

	set(cfg.WorkerPool.Size <= 0, "worker_pool.size", 1, func() { cfg.WorkerPool.Size = 1 })

	set(cfg.Auth.TokenTTLHours <= 0, "auth.token_ttl_hours", 12, func() { cfg.Auth.TokenTTLHours = 12 })
	cfg.Auth.TokenTTL = time.Duration(cfg.Auth.TokenTTLHours) * time.Hour

	set(cfg.Log.Level == "", "log.level", "info", func() { cfg.Log.Level = "info" })

	cfg.defaulted = append(cfg.defaulted, filled...)
	return filled
}

// LogDefaults reports every setting ApplyDefaults had to fill in.
func (cfg *Config) LogDefaults(logger *zap.Logger) {
	for _, d := range cfg.defaulted {
		logger.Info("configuration value not set or invalid; using default",
			zap.String("key", d.Key), zap.Any("value", d.Value))
	}
}

// Location returns the configured timezone for dates sent without an offset.
func (c ServerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
