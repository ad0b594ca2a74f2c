// Package config provides configuration loading for reposcan.
//
// Settings come from a YAML file, environment variables and command-line
// flags. See LoadWithFile for precedence rules.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Output modes control how a hit file is named in the report.
const (
	OutputModePath    = "path"
	OutputModeHTMLURL = "html_url"
)

// MaxWorkers bounds the number of candidates fetched and matched at once.
const MaxWorkers = 8

// Config holds the complete reposcan configuration.
type Config struct {
	GitHub    GitHubConfig    `koanf:"github"`
	Search    SearchConfig    `koanf:"search"`
	Output    OutputConfig    `koanf:"output"`
	Cache     CacheConfig     `koanf:"cache"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

// GitHubConfig holds GitHub API access settings.
type GitHubConfig struct {
	Token             Secret        `koanf:"token"`
	BaseURL           string        `koanf:"base_url"` // GitHub Enterprise API root, empty for github.com
	Target            string        `koanf:"target"`   // organization or user owning the repositories
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	MaxRetries        int           `koanf:"max_retries"`
	Timeout           time.Duration `koanf:"timeout"`
}

// SearchConfig holds the search pass settings.
type SearchConfig struct {
	RepositoryFilters []string      `koanf:"repository_filters"`
	FilenameFilter    string        `koanf:"filename_filter"`
	Workers           int           `koanf:"workers"`
	ProgressInterval  time.Duration `koanf:"progress_interval"`
	Literal           bool          `koanf:"literal"`
}

// OutputConfig controls the console report.
type OutputConfig struct {
	Mode             string `koanf:"mode"`
	SurroundingLines int    `koanf:"surrounding_lines"`
	Quiet            bool   `koanf:"quiet"`
	DetectSecrets    bool   `koanf:"detect_secrets"`
	RedactSecrets    bool   `koanf:"redact_secrets"`
}

// CacheConfig holds content cache settings.
type CacheConfig struct {
	Dir      string `koanf:"dir"`
	Disabled bool   `koanf:"disabled"`
}

// MetricsConfig holds Prometheus export settings.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"` // written once at exit when set
}

// TelemetryConfig holds OpenTelemetry trace export settings.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - workers is not between 1 and 8
//   - progress interval, request rate or timeout is not positive
//   - output mode is unknown or surrounding lines is negative
//   - telemetry sample rate is outside [0, 1]
func (c *Config) Validate() error {
	if c.Search.Workers < 1 || c.Search.Workers > MaxWorkers {
		return fmt.Errorf("invalid worker count: %d (must be 1-%d)", c.Search.Workers, MaxWorkers)
	}
	if c.Search.ProgressInterval <= 0 {
		return errors.New("progress interval must be positive")
	}
	if c.GitHub.RequestsPerSecond <= 0 {
		return errors.New("github requests_per_second must be positive")
	}
	if c.GitHub.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.GitHub.MaxRetries)
	}
	if c.GitHub.Timeout <= 0 {
		return errors.New("github timeout must be positive")
	}

	mode, err := ParseOutputMode(c.Output.Mode)
	if err != nil {
		return err
	}
	c.Output.Mode = mode

	if c.Output.SurroundingLines < 0 {
		return fmt.Errorf("surrounding lines cannot be negative: %d", c.Output.SurroundingLines)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry endpoint is required when telemetry is enabled")
	}
	return nil
}

// ParseOutputMode normalizes an output mode. The legacy spellings "Path" and
// "HtmlUrl" are accepted.
func ParseOutputMode(mode string) (string, error) {
	switch strings.ToLower(strings.ReplaceAll(mode, "_", "")) {
	case "", "path":
		return OutputModePath, nil
	case "htmlurl", "url":
		return OutputModeHTMLURL, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (expected %q or %q)", mode, OutputModePath, OutputModeHTMLURL)
	}
}

// MissingSettingsError lists required settings that have no value.
type MissingSettingsError struct {
	Settings []string
}

func (e *MissingSettingsError) Error() string {
	return "the following required settings do not have a valid value: " + strings.Join(e.Settings, ", ")
}

// RequireSearchSettings checks the settings a search pass cannot run without.
// Every missing setting is reported, not just the first.
func (c *Config) RequireSearchSettings() error {
	var missing []string
	if strings.TrimSpace(c.GitHub.Target) == "" {
		missing = append(missing, "github.target")
	}
	if len(nonEmpty(c.Search.RepositoryFilters)) == 0 {
		missing = append(missing, "search.repository_filters")
	}
	if strings.TrimSpace(c.Search.FilenameFilter) == "" {
		missing = append(missing, "search.filename_filter")
	}
	if len(missing) > 0 {
		return &MissingSettingsError{Settings: missing}
	}
	return nil
}

// SplitFilters splits a '|'-separated filter list, dropping empty entries.
func SplitFilters(raw string) []string {
	return nonEmpty(strings.Split(raw, "|"))
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
