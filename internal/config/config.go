// Package config loads the operator's automation policy from config.yaml.
// The result is immutable for the duration of a run and passed explicitly
// through the pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/nightbreeze/internal/models"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from --config) is checked first, then ./config.yaml,
// ~/.config/nightbreeze/config.yaml, /etc/nightbreeze/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "nightbreeze", "config.yaml"))
	}

	paths = append(paths, "/etc/nightbreeze/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty it must exist.
// Otherwise the first existing path from DefaultSearchPaths wins.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds the full automation policy.
type Config struct {
	Location Location `yaml:"location"`
	Schedule Schedule `yaml:"schedule"`
	Rules    Rules    `yaml:"rules"`
	AI       AI       `yaml:"ai"`
}

// Location anchors the weather lookup and the active-hours clock.
type Location struct {
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lon"`
	Timezone  string  `yaml:"timezone"`
}

// Schedule is the active-hours window. StartHour > EndHour means the window
// spans midnight (e.g. 22 to 7).
type Schedule struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// Contains reports whether the local hour falls inside the window.
func (s Schedule) Contains(hour int) bool {
	if s.StartHour > s.EndHour {
		return hour >= s.StartHour || hour < s.EndHour
	}
	return hour >= s.StartHour && hour < s.EndHour
}

// FinalHour reports whether this is the last hour of the window, after which
// the AC should be shut down for wake-up.
func (s Schedule) FinalHour(hour int) bool {
	end := s.EndHour - 1
	if end < 0 {
		end = 23
	}
	return hour == end
}

// Rules are the sleep-science comfort bands and execution limits.
type Rules struct {
	OptimalMin       float64     `yaml:"optimal_min"`
	OptimalMax       float64     `yaml:"optimal_max"`
	AcceptableMax    float64     `yaml:"acceptable_max"`
	PreferredMode    models.Mode `yaml:"preferred_mode"`
	MinChangeMinutes int         `yaml:"min_change_minutes"`
}

// MinChangeEvery is the minimum interval between executed adjustments.
func (r Rules) MinChangeEvery() time.Duration {
	return time.Duration(r.MinChangeMinutes) * time.Minute
}

// AI carries free-form operator notes appended to the decision prompt and an
// optional model override.
type AI struct {
	Notes string `yaml:"notes"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with workable defaults for everything but location.
func Default() *Config {
	return &Config{
		Location: Location{Timezone: "UTC"},
		Schedule: Schedule{StartHour: 22, EndHour: 7},
		Rules: Rules{
			OptimalMin:       16,
			OptimalMax:       20,
			AcceptableMax:    24,
			PreferredMode:    models.ModeCool,
			MinChangeMinutes: 30,
		},
	}
}

// Validate checks ranges that would otherwise surface as confusing behavior
// deep inside a run.
func (c *Config) Validate() error {
	if c.Schedule.StartHour < 0 || c.Schedule.StartHour > 23 {
		return fmt.Errorf("schedule.start_hour %d out of range", c.Schedule.StartHour)
	}
	if c.Schedule.EndHour < 0 || c.Schedule.EndHour > 23 {
		return fmt.Errorf("schedule.end_hour %d out of range", c.Schedule.EndHour)
	}
	if c.Rules.OptimalMin > c.Rules.OptimalMax {
		return fmt.Errorf("rules.optimal_min %.1f above optimal_max %.1f", c.Rules.OptimalMin, c.Rules.OptimalMax)
	}
	if c.Rules.OptimalMax > c.Rules.AcceptableMax {
		return fmt.Errorf("rules.optimal_max %.1f above acceptable_max %.1f", c.Rules.OptimalMax, c.Rules.AcceptableMax)
	}
	if !c.Rules.PreferredMode.Valid() {
		return fmt.Errorf("rules.preferred_mode %q not a known mode", c.Rules.PreferredMode)
	}
	if c.Rules.MinChangeMinutes < 0 {
		return fmt.Errorf("rules.min_change_minutes must not be negative")
	}
	if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
		return fmt.Errorf("location.timezone: %w", err)
	}
	return nil
}

// TZ returns the configured timezone. Validate guarantees it loads.
func (c *Config) TZ() *time.Location {
	loc, err := time.LoadLocation(c.Location.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
