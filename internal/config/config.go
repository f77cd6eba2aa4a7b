// Package config provides YAML-based configuration loading for sessionlens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from sessionlens.yaml.
type Config struct {
	Study    string         `yaml:"study"`
	Database DatabaseConfig `yaml:"database"`
	Override OverrideConfig `yaml:"override"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Payload  PayloadConfig  `yaml:"payload"`
	Limits   LimitsConfig   `yaml:"limits"`
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// DatabaseConfig holds connection settings for the authoritative record store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// OverrideConfig locates the local patch store.
type OverrideConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// RefreshConfig controls change-driven and periodic refresh.
type RefreshConfig struct {
	DebounceMS  int    `yaml:"debounce_ms"`
	PollSeconds int    `yaml:"poll_seconds"`
	AutoRefresh string `yaml:"auto_refresh"` // cron spec, empty disables
}

// PayloadConfig sizes meta-question part rows.
type PayloadConfig struct {
	PartSize int `yaml:"part_size"`
}

// LimitsConfig holds per-entry redistribution ceilings in seconds.
type LimitsConfig struct {
	SlideCeiling int `yaml:"slide_ceiling_seconds"`
	PageCeiling  int `yaml:"page_ceiling_seconds"`
}

// ServerConfig configures the inspector HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CatalogConfig seeds the question and slide catalogs.
type CatalogConfig struct {
	Questions []QuestionConfig `yaml:"questions"`
	Slides    []SlideConfig    `yaml:"slides"`
}

// QuestionConfig is one catalog question.
type QuestionConfig struct {
	ID        string    `yaml:"id"`
	Type      string    `yaml:"type"`
	ModeScope string    `yaml:"mode_scope"`
	Prompt    string    `yaml:"prompt"`
	Active    *bool     `yaml:"active"`
	CreatedAt time.Time `yaml:"created_at"`
}

// SlideConfig is one catalog slide.
type SlideConfig struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	SortOrder int    `yaml:"sort_order"`
	Active    *bool  `yaml:"active"`
}

// IsActive reports whether the question is active; unset means active.
func (q QuestionConfig) IsActive() bool {
	return q.Active == nil || *q.Active
}

// IsActive reports whether the slide is active; unset means active.
func (s SlideConfig) IsActive() bool {
	return s.Active == nil || *s.Active
}

// Debounce returns the change-notification coalescing window.
func (r RefreshConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMS) * time.Millisecond
}

// PollInterval returns the change watcher interval.
func (r RefreshConfig) PollInterval() time.Duration {
	return time.Duration(r.PollSeconds) * time.Second
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" && c.Study != "" {
			c.Database.Path = c.Study + ".db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" && c.Study != "" {
			c.Database.Name = "sessionlens_" + c.Study
		}
	}
	if c.Override.Path == "" && !c.Override.InMemory && c.Study != "" {
		c.Override.Path = filepath.Join(os.ExpandEnv("${HOME}"), ".sessionlens", c.Study, "overrides")
	}
	if c.Refresh.DebounceMS == 0 {
		c.Refresh.DebounceMS = 300
	}
	if c.Refresh.PollSeconds == 0 {
		c.Refresh.PollSeconds = 5
	}
	if c.Payload.PartSize == 0 {
		c.Payload.PartSize = 900
	}
	if c.Limits.SlideCeiling == 0 {
		c.Limits.SlideCeiling = 180
	}
	if c.Limits.PageCeiling == 0 {
		c.Limits.PageCeiling = 7200
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	for i := range c.Catalog.Questions {
		if c.Catalog.Questions[i].ModeScope == "" {
			c.Catalog.Questions[i].ModeScope = "both"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Study == "" {
		errs = append(errs, "study is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Refresh.AutoRefresh != "" {
		if _, err := cron.ParseStandard(c.Refresh.AutoRefresh); err != nil {
			errs = append(errs, fmt.Sprintf("refresh.auto_refresh %q: %v", c.Refresh.AutoRefresh, err))
		}
	}
	if c.Payload.PartSize < 0 {
		errs = append(errs, "payload.part_size must be positive")
	}
	if c.Limits.SlideCeiling < 0 || c.Limits.PageCeiling < 0 {
		errs = append(errs, "limits must be positive")
	}
	for i, q := range c.Catalog.Questions {
		if q.ID == "" {
			errs = append(errs, fmt.Sprintf("catalog.questions[%d].id is required", i))
		}
		switch q.Type {
		case "pre", "post", "demographic":
		default:
			errs = append(errs, fmt.Sprintf("catalog.questions[%d].type %q is invalid", i, q.Type))
		}
		switch q.ModeScope {
		case "both", "text", "avatar":
		default:
			errs = append(errs, fmt.Sprintf("catalog.questions[%d].mode_scope %q is invalid", i, q.ModeScope))
		}
	}
	for i, s := range c.Catalog.Slides {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("catalog.slides[%d].id is required", i))
		}
		if s.Title == "" {
			errs = append(errs, fmt.Sprintf("catalog.slides[%d].title is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
