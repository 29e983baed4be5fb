package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const configFileName = "shift_mirror_config.yaml"

// Defaults applied by Load for optional fields.
const (
	defaultSyncRule   = "FREQ=WEEKLY;COUNT=1"
	defaultMaxReloads = 10
)

// Config represents the application configuration.
type Config struct {
	// PortalURL is the ESS portal login URL.
	PortalURL string `yaml:"portalURL" validate:"required,url"`
	// CredentialsFile is the JSON file holding the portal username and
	// password.
	CredentialsFile string `yaml:"credentialsFile" validate:"required"`
	// CalendarID is the Google calendar the roster is mirrored onto.
	CalendarID string `yaml:"calendarID" validate:"required"`
	// Timezone is the IANA zone the portal's naive times are read in.
	// Empty means the system's local zone.
	Timezone string `yaml:"timezone,omitempty"`
	// SyncRule is an RRULE whose occurrences name the weeks to mirror,
	// anchored at the start of the current week. Defaults to the current
	// week only.
	SyncRule string `yaml:"syncRule,omitempty"`
	// MaxReloads bounds how many period steps a single navigation may take.
	MaxReloads int `yaml:"maxReloads,omitempty" validate:"omitempty,min=1"`
	// RefreshCron schedules watch-mode syncs, standard 5-field cron syntax.
	RefreshCron string `yaml:"refreshCron,omitempty"`
	// EventSummary overrides the generated calendar event title.
	EventSummary string `yaml:"eventSummary,omitempty"`
	// EventLocation is copied onto every created calendar event.
	EventLocation string `yaml:"eventLocation,omitempty"`
	// ClearWindow controls whether events overlapping a new shift are
	// deleted before the shift is created. Defaults to true.
	ClearWindow *bool `yaml:"clearWindow,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from shift_mirror_config.yaml,
// looking in the current directory first, then in the user's home directory.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SyncRule == "" {
		cfg.SyncRule = defaultSyncRule
	}
	if cfg.MaxReloads == 0 {
		cfg.MaxReloads = defaultMaxReloads
	}
}

// Validate validates the configuration struct plus the fields whose syntax
// the struct tags cannot express: the sync RRULE, the cron schedule and the
// timezone name.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.SyncRule != "" {
		if _, err := rrule.StrToRRule(cfg.SyncRule); err != nil {
			return fmt.Errorf("invalid syncRule: %w", err)
		}
	}

	if cfg.RefreshCron != "" {
		if _, err := cron.ParseStandard(cfg.RefreshCron); err != nil {
			return fmt.Errorf("invalid refreshCron: %w", err)
		}
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	return nil
}

// Location resolves the configured timezone, falling back to the system's
// local zone when none is set.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ClearWindowEnabled reports whether overlapping events should be removed
// before a shift event is created.
func (c *Config) ClearWindowEnabled() bool {
	return c.ClearWindow == nil || *c.ClearWindow
}

// findConfigFile searches for the config file in the current directory and
// the home directory.
func findConfigFile() (string, error) {
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
